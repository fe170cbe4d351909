package cloud

import (
	"maps"
	"net/http"

	"github.com/mur-run/murdev/internal/identity"
)

const (
	contentTypeJSON = "application/json"

	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
)

// RequestSpec describes one logical backend call.
type RequestSpec struct {
	Path    string            // appended to the client's resource path
	Method  string            // default GET
	Headers map[string]string // keys matched case-sensitively
	Query   map[string]string
	Data    []byte         // raw body; wins over JSON when both are set
	JSON    map[string]any // JSON body
	Version string         // overrides the backend API version
}

// ResolvedRequest is a RequestSpec with everything filled in.
type ResolvedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Data    []byte
	JSON    map[string]any
}

// resolve turns spec into a ResolvedRequest for the client rooted at
// resource. It copies every map it touches; spec is never modified.
func resolve(spec RequestSpec, baseURL, resource, version string, id identity.Identity) ResolvedRequest {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	if spec.Version != "" {
		version = spec.Version
	}

	headers := maps.Clone(spec.Headers)
	if headers == nil {
		headers = make(map[string]string, 2)
	}
	if _, ok := headers[headerContentType]; !ok {
		headers[headerContentType] = contentTypeJSON
	}
	if _, ok := headers[headerAuthorization]; !ok {
		headers[headerAuthorization] = "Bearer " + id.Access
	}

	return ResolvedRequest{
		Method:  method,
		URL:     baseURL + "/" + version + "/" + resource + spec.Path,
		Headers: headers,
		Query:   maps.Clone(spec.Query),
		Data:    spec.Data,
		JSON:    resolveJSON(spec.JSON, headers[headerContentType]),
	}
}

// resolveJSON copies body, turning empty strings into nulls when the body
// is going out as application/json.
func resolveJSON(body map[string]any, contentType string) map[string]any {
	if body == nil {
		return nil
	}
	out := make(map[string]any, len(body))
	for k, v := range body {
		if s, ok := v.(string); ok && s == "" && contentType == contentTypeJSON {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}
