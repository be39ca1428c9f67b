package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Options describes one outbound request. A nil Options is valid: the
// client substitutes defaults and logs a configuration warning instead of
// failing the caller.
type Options struct {
	// Method is the HTTP verb. Default: GET
	Method string

	// Path is joined to the service's configured base URL.
	Path string

	// URL is an absolute URL that overrides BaseURL+Path when set.
	URL string

	// Query is appended to the request URL.
	Query url.Values

	// Headers are copied onto the request.
	Headers http.Header

	// BearerToken, when set, is sent as "Authorization: Bearer <token>".
	BearerToken string

	// Body is the request payload.
	Body []byte

	// ContentType overrides the Content-Type header when Body is set.
	// Default: application/json
	ContentType string

	// Timeout overrides the per-attempt timeout for this request.
	// 0 uses the service setting.
	Timeout time.Duration
}

// joinURL resolves the request URL from an absolute override or the
// service base URL plus path.
func joinURL(baseURL, path string) string {
	if baseURL == "" {
		return path
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Response is the result of a successful (2xx/3xx) request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}
