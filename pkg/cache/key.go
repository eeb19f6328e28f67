package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// CacheKey represents the identity of a cached request.
type CacheKey struct {
	// Method is the request method (only GET entries are ever stored)
	Method string

	// URL is the absolute request URL
	URL *url.URL
}

// KeyFor builds the cache key of a request.
func KeyFor(req *http.Request) CacheKey {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return CacheKey{
		Method: method,
		URL:    req.URL,
	}
}

// String generates a deterministic cache key string.
// Format: METHOD:scheme://host/path?query
//
// The fragment is dropped and the query is kept verbatim, so two requests
// only share a key when their URLs are identical.
//
// Example:
//   GET:https://portfolio.example/assets/css/style.css
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	if k.URL == nil {
		return method + ":"
	}

	u := *k.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	return method + ":" + u.String()
}
