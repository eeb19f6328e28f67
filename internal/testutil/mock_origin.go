// Package testutil provides testing utilities for the site worker.
package testutil

import (
	"mime"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"time"
)

// MockAsset defines the behavior for a mock origin path.
type MockAsset struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable fake static-site origin for testing.
type MockOrigin struct {
	server *httptest.Server
	mu     sync.RWMutex
	assets map[string]MockAsset
	down   bool

	// Tracking
	requests      map[string]int
	reloadCount   int
	lastUserAgent string
	lastHost      string
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		assets:   make(map[string]MockAsset),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockOrigin) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	if r.Header.Get("Cache-Control") == "no-cache" && r.Header.Get("Pragma") == "no-cache" {
		m.reloadCount++
	}
	m.lastUserAgent = r.Header.Get("User-Agent")
	m.lastHost = r.Host
	down := m.down
	asset, exists := m.assets[r.URL.Path]
	m.mu.Unlock()

	// Simulate a network failure by dropping the connection
	if down {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if !exists {
		http.NotFound(w, r)
		return
	}

	if asset.Delay > 0 {
		time.Sleep(asset.Delay)
	}
	if ct := mime.TypeByExtension(path.Ext(r.URL.Path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	for key, value := range asset.Headers {
		w.Header().Set(key, value)
	}
	status := asset.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if asset.Body != "" {
		w.Write([]byte(asset.Body))
	}
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetAsset configures the response for a path.
func (m *MockOrigin) SetAsset(p string, asset MockAsset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[p] = asset
}

// SetBody configures a 200 OK response with the given body.
func (m *MockOrigin) SetBody(p, body string) {
	m.SetAsset(p, MockAsset{StatusCode: http.StatusOK, Body: body})
}

// SetDown makes every request fail at the connection level.
func (m *MockOrigin) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.reloadCount = 0
	m.lastUserAgent = ""
	m.lastHost = ""
}

// RequestCount returns the number of requests made for a path.
func (m *MockOrigin) RequestCount(p string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[p]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockOrigin) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// ReloadCount returns the number of cache-bypassing requests.
func (m *MockOrigin) ReloadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reloadCount
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockOrigin) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUserAgent
}

// LastHost returns the Host header of the most recent request.
func (m *MockOrigin) LastHost() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHost
}

// PortfolioAssets returns a small portfolio site keyed by path.
func PortfolioAssets() map[string]string {
	return map[string]string{
		"/":                      "<html>home</html>",
		"/index.html":            "<html>home</html>",
		"/about.html":            "<html>about</html>",
		"/assets/css/style.css":  "body{margin:0}",
		"/assets/js/main.js":     "console.log('hi')",
		"/assets/img/hero.png":   "png",
		"/assets/fonts/a.woff2":  "woff2",
		"/robots.txt":            "User-agent: *",
		"/assets/data/cv.json":   `{"name":"portfolio"}`,
		"/assets/img/avatar.JPG": "jpg",
	}
}

// NewPortfolioOrigin creates a mock origin serving PortfolioAssets.
func NewPortfolioOrigin() *MockOrigin {
	m := NewMockOrigin()
	for p, body := range PortfolioAssets() {
		m.SetBody(p, body)
	}
	return m
}
