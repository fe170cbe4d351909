// Package cloud talks to the device backend: it builds authenticated
// requests, refreshes the access token when the backend rejects it, and
// exposes the device and speech-to-text endpoints on top of that.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mur-run/murdev/internal/identity"
	"github.com/mur-run/murdev/internal/logging"
)

const (
	DefaultServerURL = "https://api.mycroft.ai"
	DefaultVersion   = "v1"
)

// IdentityStore holds the device credentials the backend calls run with.
type IdentityStore interface {
	// Get returns the current in-memory identity.
	Get() identity.Identity
	// Load re-reads the persisted identity and makes it current.
	Load() (identity.Identity, error)
	// Save persists data and makes it the current identity.
	Save(data identity.TokenData) error
	// Update replaces the in-memory identity without persisting it.
	Update(data identity.TokenData)
}

// Backend is the shared state of every client talking to one server with
// one identity: the HTTP client, the identity store, and the refresh guard.
type Backend struct {
	baseURL string
	version string
	http    *http.Client
	store   IdentityStore
	log     logging.Logger
	now     func() time.Time

	refreshes singleflight.Group
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default HTTP client and its fixed timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.http = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// NewBackend creates a Backend for serverURL and API version, falling back
// to DefaultServerURL and DefaultVersion when they are empty.
func NewBackend(serverURL, version string, store IdentityStore, opts ...Option) *Backend {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if version == "" {
		version = DefaultVersion
	}

	b := &Backend{
		baseURL: serverURL,
		version: version,
		http:    newHTTPClient(),
		store:   store,
		log:     logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the identity store.
func (b *Backend) Store() IdentityStore {
	return b.store
}

// Client returns a client whose request paths are rooted at resource.
func (b *Backend) Client(resource string) *Client {
	return &Client{backend: b, resource: resource}
}

// Client issues requests under one resource path, e.g. "device".
type Client struct {
	backend  *Backend
	resource string
}

// Request runs spec against the backend and returns the parsed response
// data. If the backend rejects the access token, the token is refreshed and
// spec is sent once more; a second rejection is returned as *APIError.
func (c *Client) Request(ctx context.Context, spec RequestSpec) (any, error) {
	b := c.backend
	if err := b.checkToken(ctx); err != nil {
		return nil, err
	}

	data, err := b.send(ctx, c.resource, spec)
	var expired *authExpiredError
	if !errors.As(err, &expired) {
		return data, err
	}

	b.log.Info(ctx, "access token rejected, refreshing", "url", expired.apiErr.URL)
	if err := b.refresh(ctx, expired.access); err != nil {
		return nil, err
	}

	data, err = b.send(ctx, c.resource, spec)
	if errors.As(err, &expired) {
		return nil, expired.apiErr
	}
	return data, err
}

// checkToken refreshes ahead of time when the stored access token has
// expired. Another process may already have refreshed it on disk, so the
// identity is reloaded before spending the refresh token.
func (b *Backend) checkToken(ctx context.Context) error {
	if !b.store.Get().IsExpired(b.now()) {
		return nil
	}

	id, err := b.store.Load()
	if err != nil {
		return fmt.Errorf("failed to reload identity: %w", err)
	}
	if !id.IsExpired(b.now()) {
		return nil
	}
	return b.refresh(ctx, id.Access)
}

// send builds spec with the current identity, executes it, and classifies
// the response.
func (b *Backend) send(ctx context.Context, resource string, spec RequestSpec) (any, error) {
	id := b.store.Get()
	req := resolve(spec, b.baseURL, resource, b.version, id)

	b.log.Debug(ctx, "sending request", "method", req.Method, "url", req.URL)
	resp, err := b.do(ctx, req)
	if err != nil {
		b.log.Debug(ctx, "request failed", "method", req.Method, "url", req.URL, "error", err)
		return nil, err
	}
	b.log.Debug(ctx, "received response", "url", resp.URL, "status", resp.StatusCode)

	data, err := classify(resp)
	var expired *authExpiredError
	if errors.As(err, &expired) {
		expired.access = id.Access
	}
	return data, err
}
