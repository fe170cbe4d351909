package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"
)

const (
	connectTimeout = 3050 * time.Millisecond
	readTimeout    = 15 * time.Second
)

// newHTTPClient returns the client every backend call goes through: a fixed
// connect timeout and a read timeout applied to each socket read.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				conn, err := dialer.DialContext(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				return &readTimeoutConn{Conn: conn, timeout: readTimeout}, nil
			},
			TLSHandshakeTimeout:   readTimeout,
			ResponseHeaderTimeout: readTimeout,
		},
	}
}

// readTimeoutConn pushes the read deadline forward before every Read, so a
// stalled server trips the timeout but a slow steady stream does not.
type readTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readTimeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// do executes req and returns the completed exchange. Only failures that
// prevent getting a response come back as errors.
func (b *Backend) do(ctx context.Context, req ResolvedRequest) (*Response, error) {
	var body io.Reader
	switch {
	case req.Data != nil:
		body = bytes.NewReader(req.Data)
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target, err := withQuery(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for _, k := range slices.Sorted(maps.Keys(req.Headers)) {
		httpReq.Header.Set(k, req.Headers[k])
	}

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Data:       parseData(raw),
		URL:        resp.Request.URL.String(),
	}, nil
}

// withQuery merges query into rawURL, keeping any query the path already
// carried.
func withQuery(rawURL string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", rawURL, err)
	}
	values := u.Query()
	for k, v := range query {
		values.Set(k, v)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}
