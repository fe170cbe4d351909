// Package identity holds the device credentials used to talk to the backend
// and persists them between runs.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the device's current credential set.
type Identity struct {
	UUID      string    `json:"uuid"`
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the access token has expired at now.
// An identity without a refresh token never expires: there is nothing to
// refresh it with.
func (i Identity) IsExpired(now time.Time) bool {
	return i.Refresh != "" && !now.Before(i.ExpiresAt)
}

// TokenData is the login/refresh payload returned by the backend.
type TokenData struct {
	UUID         string `json:"uuid"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Expiration   int64  `json:"expiration"` // seconds from issue
}

// FromTokenData builds the Identity described by data as of now.
func FromTokenData(data TokenData, now time.Time) Identity {
	id := Identity{
		UUID:    data.UUID,
		Access:  data.AccessToken,
		Refresh: data.RefreshToken,
	}
	switch {
	case data.Expiration > 0:
		id.ExpiresAt = now.Add(time.Duration(data.Expiration) * time.Second)
	case data.AccessToken != "":
		if exp, ok := jwtExpiry(data.AccessToken); ok {
			id.ExpiresAt = exp
		} else {
			id.ExpiresAt = now
		}
	default:
		id.ExpiresAt = now
	}
	return id
}

// jwtExpiry reads the exp claim of a JWT access token without verifying it.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
