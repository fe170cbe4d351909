package cloud

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Response is one completed HTTP exchange.
type Response struct {
	StatusCode int
	Data       any // parsed JSON, or the raw text when the body is not JSON
	URL        string
}

func (r *Response) apiError() *APIError {
	return &APIError{StatusCode: r.StatusCode, Data: r.Data, URL: r.URL}
}

// classify maps a response to the caller's data or an error. A 401 from
// anything but the token endpoint is reported as *authExpiredError.
func classify(resp *Response) (any, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Data, nil
	case resp.StatusCode == http.StatusUnauthorized && !isTokenURL(resp.URL):
		return nil, &authExpiredError{apiErr: resp.apiError()}
	default:
		return nil, resp.apiError()
	}
}

func isTokenURL(raw string) bool {
	if u, err := url.Parse(raw); err == nil {
		return strings.HasSuffix(u.Path, tokenPath)
	}
	return strings.HasSuffix(raw, tokenPath)
}

// parseData decodes body as JSON, falling back to the text as-is.
func parseData(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// decodeData converts parsed response data into v.
func decodeData(data any, v any) error {
	if s, ok := data.(string); ok {
		return fmt.Errorf("unexpected non-JSON response: %q", truncate(s, 80))
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to re-encode response: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
