package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mur-run/murdev/internal/identity"
)

// refreshingServer serves /v1/device/* only to "Bearer new" and hands out
// "new" from /v1/auth/token.
type refreshingServer struct {
	t            *testing.T
	deviceCalls  atomic.Int32
	tokenCalls   atomic.Int32
	tokenStatus  int           // 0 means 200
	tokenDelay   time.Duration // held open to let concurrent callers pile up
	tokenGate    chan struct{} // if set, the token response waits for it to close
	alwaysReject bool
}

func (s *refreshingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/auth/token":
		s.tokenCalls.Add(1)
		if r.Method != http.MethodPost {
			s.t.Errorf("refresh method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ref" {
			s.t.Errorf("refresh Authorization = %q, want Bearer ref", got)
		}
		time.Sleep(s.tokenDelay)
		if s.tokenGate != nil {
			<-s.tokenGate
		}
		if s.tokenStatus != 0 {
			writeJSON(w, s.tokenStatus, map[string]any{"error": "invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse("new"))
	case strings.HasPrefix(r.URL.Path, "/v1/device/"):
		s.deviceCalls.Add(1)
		if s.alwaysReject || r.Header.Get("Authorization") != "Bearer new" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uuid": "abc123", "name": "kitchen"})
	default:
		http.NotFound(w, r)
	}
}

func TestRequest_Success(t *testing.T) {
	store := newMemStore(validIdentity("acc"))
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/device/abc123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer acc" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}), store)

	data, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !reflect.DeepEqual(data, map[string]any{"ok": true}) {
		t.Errorf("Request() = %v", data)
	}
}

func TestRequest_RefreshAndRetry(t *testing.T) {
	srv := &refreshingServer{t: t}
	store := newMemStore(validIdentity("old"))
	b := newTestBackend(t, srv, store)

	data, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	m, ok := data.(map[string]any)
	if !ok || m["name"] != "kitchen" {
		t.Errorf("Request() = %v", data)
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if n := srv.deviceCalls.Load(); n != 2 {
		t.Errorf("device calls = %d, want 2", n)
	}
	if n := store.saveCount(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
	if got := store.Get().Access; got != "new" {
		t.Errorf("access after refresh = %q, want new", got)
	}
}

func TestRequest_RetrySendsOriginalSpec(t *testing.T) {
	var bodies []map[string]any
	var mu sync.Mutex
	store := newMemStore(validIdentity("old"))
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/token" {
			writeJSON(w, http.StatusOK, tokenResponse("new"))
			return
		}
		if r.Header.Get("X-Trace") != "t1" || r.URL.Query().Get("q") != "1" {
			t.Errorf("request lost spec fields: %v %v", r.Header, r.URL)
		}
		var body map[string]any
		_ = json.Unmarshal(readBody(t, r), &body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, "done")
	}), store)

	spec := RequestSpec{
		Method:  http.MethodPost,
		Path:    "/activate",
		Headers: map[string]string{"X-Trace": "t1"},
		Query:   map[string]string{"q": "1"},
		JSON:    map[string]any{"state": "s", "token": ""},
	}
	if _, err := b.Client("device").Request(context.Background(), spec); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("got %d device requests, want 2", len(bodies))
	}
	want := map[string]any{"state": "s", "token": nil}
	for i, body := range bodies {
		if !reflect.DeepEqual(body, want) {
			t.Errorf("body %d = %v, want %v", i, body, want)
		}
	}
	if _, ok := spec.Headers["Authorization"]; ok {
		t.Error("caller's spec was mutated")
	}
}

func TestRequest_DoubleUnauthorized(t *testing.T) {
	srv := &refreshingServer{t: t, alwaysReject: true}
	b := newTestBackend(t, srv, newMemStore(validIdentity("old")))

	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if !strings.HasSuffix(apiErr.URL, "/v1/device/abc123") {
		t.Errorf("URL = %q", apiErr.URL)
	}
	var expired *authExpiredError
	if errors.As(err, &expired) {
		t.Error("internal auth signal leaked to the caller")
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if n := srv.deviceCalls.Load(); n != 2 {
		t.Errorf("device calls = %d, want 2", n)
	}
}

func TestRequest_RefreshFailure(t *testing.T) {
	srv := &refreshingServer{t: t, tokenStatus: http.StatusUnauthorized}
	store := newMemStore(validIdentity("old"))
	b := newTestBackend(t, srv, store)

	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected the refresh *APIError unwrapped, got %T: %v", err, err)
	}
	if !strings.HasSuffix(apiErr.URL, "/v1/auth/token") {
		t.Errorf("URL = %q, want the token endpoint", apiErr.URL)
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if n := srv.deviceCalls.Load(); n != 1 {
		t.Errorf("device calls = %d, want 1 (no retry after failed refresh)", n)
	}
	if store.saveCount() != 0 {
		t.Error("failed refresh must not save")
	}
}

func TestRequest_NoRefreshToken(t *testing.T) {
	srv := &refreshingServer{t: t}
	id := validIdentity("old")
	id.Refresh = ""
	b := newTestBackend(t, srv, newMemStore(id))

	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if srv.tokenCalls.Load() != 0 {
		t.Error("refresh endpoint should not be called without a refresh token")
	}
}

func TestRequest_TransportErrorNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := NewBackend(url, "v1", newMemStore(validIdentity("acc")))
	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if terr.Method != http.MethodGet || !strings.HasSuffix(terr.URL, "/v1/device/abc123") {
		t.Errorf("TransportError = %+v", terr)
	}
}

func TestRequest_TransportErrorDuringRefresh(t *testing.T) {
	var deviceCalls atomic.Int32
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/token" {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("hijacking not supported")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		deviceCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), newMemStore(validIdentity("old")))

	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if n := deviceCalls.Load(); n != 1 {
		t.Errorf("device calls = %d, want 1", n)
	}
}

func TestRequest_PreemptiveRefresh(t *testing.T) {
	srv := &refreshingServer{t: t}
	expired := validIdentity("old")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	store := newMemStore(expired)
	b := newTestBackend(t, srv, store)

	if _, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if store.loads != 1 {
		t.Errorf("loads = %d, want 1", store.loads)
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if n := srv.deviceCalls.Load(); n != 1 {
		t.Errorf("device calls = %d, want 1 (token refreshed before sending)", n)
	}
}

func TestRequest_PreemptiveReloadAvoidsRefresh(t *testing.T) {
	srv := &refreshingServer{t: t}
	expired := validIdentity("old")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	store := newMemStore(expired)
	store.disk = validIdentity("new")
	b := newTestBackend(t, srv, store)

	if _, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/abc123"}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if n := srv.tokenCalls.Load(); n != 0 {
		t.Errorf("token calls = %d, want 0", n)
	}
}

func TestRequest_NoExpiryCheckWithoutRefreshToken(t *testing.T) {
	store := newMemStore(identity.Identity{Access: "acc", ExpiresAt: time.Now().Add(-time.Hour)})
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "ok")
	}), store)

	if _, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/code"}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if store.loads != 0 {
		t.Errorf("loads = %d, want 0", store.loads)
	}
}

func TestRequest_PlainTextResponse(t *testing.T) {
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text"))
	}), newMemStore(validIdentity("acc")))

	data, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/x"})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if data != "plain text" {
		t.Errorf("Request() = %#v, want %q", data, "plain text")
	}
}

func TestRequest_ServerError(t *testing.T) {
	srv := &refreshingServer{t: t}
	mux := http.NewServeMux()
	mux.Handle("/v1/auth/token", srv)
	mux.HandleFunc("/v1/device/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	})
	b := newTestBackend(t, mux, newMemStore(validIdentity("acc")))

	_, err := b.Client("device").Request(context.Background(), RequestSpec{Path: "/x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("expected *APIError 500, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q", err.Error())
	}
	if srv.tokenCalls.Load() != 0 {
		t.Error("5xx must not trigger a refresh")
	}
}

func TestRequest_RawBodyWinsOverJSON(t *testing.T) {
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := string(readBody(t, r)); got != "raw" {
			t.Errorf("body = %q, want raw", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}), newMemStore(validIdentity("acc")))

	_, err := b.Client("stt").Request(context.Background(), RequestSpec{
		Method: http.MethodPost,
		Data:   []byte("raw"),
		JSON:   map[string]any{"ignored": true},
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
}

func TestRequest_ConcurrentRefreshCollapses(t *testing.T) {
	srv := &refreshingServer{t: t, tokenDelay: 50 * time.Millisecond}
	store := newMemStore(validIdentity("old"))
	b := newTestBackend(t, srv, store)
	client := b.Client("device")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Request(context.Background(), RequestSpec{Path: "/abc123"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Request() error = %v", err)
		}
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if n := store.saveCount(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
}

func TestRequest_RefreshSurvivesStarterCancel(t *testing.T) {
	gate := make(chan struct{})
	srv := &refreshingServer{t: t, tokenGate: gate}
	store := newMemStore(validIdentity("old"))
	b := newTestBackend(t, srv, store)
	client := b.Client("device")

	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := client.Request(ctxA, RequestSpec{Path: "/abc123"})
		errA <- err
	}()
	waitFor(t, func() bool { return srv.tokenCalls.Load() == 1 })

	errB := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), RequestSpec{Path: "/abc123"})
		errB <- err
	}()
	waitFor(t, func() bool { return srv.deviceCalls.Load() == 2 })
	time.Sleep(50 * time.Millisecond) // let B join the refresh in flight

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	release()
	if err := <-errB; err != nil {
		t.Fatalf("live caller error = %v", err)
	}
	if n := srv.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if got := store.Get().Access; got != "new" {
		t.Errorf("stored access = %q, want new", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
