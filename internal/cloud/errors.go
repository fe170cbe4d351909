package cloud

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPaired is returned by device calls that need a UUID when the
	// identity has none.
	ErrNotPaired = errors.New("device is not paired")

	// ErrNoRefreshToken is returned when a refresh is needed but the
	// identity carries no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// TransportError is a failure before any HTTP response was obtained:
// DNS, connect, TLS, timeouts, or a broken body read.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a completed exchange with a non-2xx status.
type APIError struct {
	StatusCode int
	Data       any // parsed JSON body, or raw text
	URL        string
}

func (e *APIError) Error() string {
	if msg := e.message(); msg != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// message pulls a human-readable reason out of the body, if the backend
// sent one.
func (e *APIError) message() string {
	switch d := e.Data.(type) {
	case map[string]any:
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := d[key].(string); ok && s != "" {
				return s
			}
		}
	case string:
		return truncate(d, 200)
	}
	return ""
}

// authExpiredError signals a 401 on a non-token endpoint. It never leaves
// the package: Client.Request either recovers from it or surfaces apiErr.
type authExpiredError struct {
	apiErr *APIError
	access string // access token the rejected request was sent with
}

func (e *authExpiredError) Error() string {
	return "access token rejected: " + e.apiErr.Error()
}

func (e *authExpiredError) Unwrap() error {
	return e.apiErr
}
