package cache

import (
	"net/http"
	"strings"
	"time"
)

// Entry is a complete snapshot of a cached response.
type Entry struct {
	// URL is the request URL the response was stored under
	URL string `json:"url"`

	// Method is the request method (always GET for stored entries)
	Method string `json:"method"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Status is the status line text, e.g. "200 OK"
	Status string `json:"status,omitempty"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Data is the response body
	Data []byte `json:"data"`

	// VaryHeaders holds the request header values named by the
	// response Vary header at the time of storage
	VaryHeaders http.Header `json:"vary_headers,omitempty"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// Vary returns the normalized header names listed in the response Vary
// header. Accept-Encoding is left out: content coding is negotiated by the
// transport and stored bodies are always decoded.
func (e *Entry) Vary() []string {
	if e == nil {
		return nil
	}
	return varyNames(e.Headers)
}

// MatchesVary reports whether req selects this entry under the stored
// response's Vary header. A Vary of "*" never matches.
func (e *Entry) MatchesVary(req *http.Request) bool {
	if e == nil || req == nil {
		return false
	}
	for _, name := range e.Vary() {
		if name == "*" {
			return false
		}
		if req.Header.Get(name) != e.VaryHeaders.Get(name) {
			return false
		}
	}
	return true
}

// Size returns the body size in bytes.
func (e *Entry) Size() int {
	if e == nil {
		return 0
	}
	return len(e.Data)
}

func varyNames(h http.Header) []string {
	var names []string
	for _, v := range h.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if name == "*" {
				names = append(names, name)
				continue
			}
			name = http.CanonicalHeaderKey(name)
			if name == "Accept-Encoding" {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}
