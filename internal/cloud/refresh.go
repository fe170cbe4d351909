package cloud

import (
	"context"
	"net/http"

	"github.com/mur-run/murdev/internal/identity"
)

// tokenPath is the refresh endpoint. A 401 from it is final: refreshing to
// recover from a failed refresh would never terminate.
const tokenPath = "auth/token"

// refresh trades the refresh token for a new identity and saves it.
//
// stale is the access token the caller found unusable. Concurrent callers
// share a single refresh, and a caller arriving after someone else already
// replaced stale with a valid token does not refresh again: each refresh
// token is spent at most once per rejection. The shared refresh outlives
// the cancellation of whichever caller started it; each caller stops
// waiting when its own ctx is done. A failed refresh is returned as is.
func (b *Backend) refresh(ctx context.Context, stale string) error {
	flight := context.WithoutCancel(ctx)
	ch := b.refreshes.DoChan("refresh", func() (any, error) {
		return nil, b.refreshOnce(flight, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			b.log.Warn(ctx, "token refresh failed", "error", res.Err)
			return res.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) refreshOnce(ctx context.Context, stale string) error {
	cur := b.store.Get()
	if cur.Access != stale && !cur.IsExpired(b.now()) {
		b.log.Debug(ctx, "token already refreshed")
		return nil
	}
	if cur.Refresh == "" {
		return ErrNoRefreshToken
	}

	data, err := b.send(ctx, "", RequestSpec{
		Path:   tokenPath,
		Method: http.MethodPost,
		Headers: map[string]string{
			headerAuthorization: "Bearer " + cur.Refresh,
		},
	})
	if err != nil {
		return err
	}

	var token identity.TokenData
	if err := decodeData(data, &token); err != nil {
		return err
	}
	if err := b.store.Save(token); err != nil {
		return err
	}

	b.log.Info(ctx, "access token refreshed", "uuid", token.UUID)
	return nil
}
