package cloud

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mur-run/murdev/internal/identity"
	"github.com/mur-run/murdev/internal/version"
)

// memStore is an in-memory IdentityStore. disk is what Load returns, which
// lets tests simulate another process refreshing the identity file.
type memStore struct {
	mu    sync.Mutex
	id    identity.Identity
	disk  identity.Identity
	saves []identity.TokenData
	loads int
}

func newMemStore(id identity.Identity) *memStore {
	return &memStore{id: id, disk: id}
}

func (m *memStore) Get() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *memStore) Load() (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	m.id = m.disk
	return m.disk, nil
}

func (m *memStore) Save(data identity.TokenData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, data)
	m.id = identity.FromTokenData(data, time.Now())
	m.disk = m.id
	return nil
}

func (m *memStore) Update(data identity.TokenData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = identity.FromTokenData(data, time.Now())
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type fixedVersions version.Info

func (f fixedVersions) Get() version.Info {
	return version.Info(f)
}

// validIdentity is a paired identity whose access token is good for an hour.
func validIdentity(access string) identity.Identity {
	return identity.Identity{
		UUID:      "abc123",
		Access:    access,
		Refresh:   "ref",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestBackend(t *testing.T, h http.Handler, store IdentityStore) *Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBackend(srv.URL, "v1", store)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// tokenResponse is what the refresh endpoint answers with.
func tokenResponse(access string) map[string]any {
	return map[string]any{
		"uuid":         "abc123",
		"accessToken":  access,
		"refreshToken": "ref",
		"expiration":   3600,
	}
}

func readBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read request body: %v", err)
	}
	return b
}
