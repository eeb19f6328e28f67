// Package client provides the origin HTTP client behind every network fetch
// of the site worker.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for origin fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_fetch_requests_total",
		Help: "Total origin fetches by HTTP status",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siteworker_fetch_duration_seconds",
		Help:    "Origin fetch duration in seconds by method",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteworker_fetch_errors_total",
		Help: "Total origin fetch errors by class",
	}, []string{"class"})
)

// HopHeaders returns the connection-level headers that are never forwarded
// or replayed from a cache.
func HopHeaders() []string {
	return append([]string(nil), hopHeaders...)
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client performs network fetches against the upstream origin.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Upstream is the server that actually serves the site (scheme + host).
	Upstream *url.URL

	// HostHeader overrides the Host header sent upstream.
	// Use it when the upstream is addressed by IP or an internal name.
	HostHeader string

	// UserAgent is sent when the incoming request carries none.
	UserAgent string

	// Timeout bounds a single fetch. Zero disables the timeout.
	Timeout time.Duration

	// Transport overrides the HTTP transport (for testing).
	Transport http.RoundTripper
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(upstream *url.URL) Config {
	return Config{
		Upstream:  upstream,
		UserAgent: "siteworker/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	if cfg.Upstream == nil {
		return nil, fmt.Errorf("upstream url is required")
	}
	if cfg.Upstream.Scheme != "http" && cfg.Upstream.Scheme != "https" {
		return nil, fmt.Errorf("upstream scheme must be http or https (got %q)", cfg.Upstream.Scheme)
	}
	if cfg.Upstream.Host == "" {
		return nil, fmt.Errorf("upstream host is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: log.With().Str("component", "client").Logger(),
	}, nil
}

// Do fetches req from the upstream origin.
//
// Like the browser fetch API, any HTTP response (including 4xx and 5xx) is
// returned as a response; only transport failures are errors. The returned
// response carries the original request, so callers can key caches on it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	out := c.direct(req)

	c.logger.Debug().
		Str("method", out.Method).
		Str("url", req.URL.String()).
		Str("upstream", out.URL.String()).
		Msg("Fetching from origin")

	resp, err := c.httpClient.Do(out)
	if err != nil {
		errClass := c.classifyError(nil, err)
		fetchErrorsTotal.WithLabelValues(string(errClass)).Inc()
		fetchRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Origin fetch failed")
		return nil, &FetchError{
			ErrorClass: errClass,
			URL:        req.URL.String(),
			Message:    "network fetch failed",
			Err:        err,
		}
	}

	fetchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if errClass := c.classifyError(resp, nil); errClass != "" {
		fetchErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Debug().
			Str("url", req.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Origin returned error status")
	}

	resp.Request = req
	return resp, nil
}

// direct clones req and points it at the upstream origin.
func (c *Client) direct(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.RequestURI = ""

	out.URL.Scheme = c.config.Upstream.Scheme
	out.URL.Host = c.config.Upstream.Host
	out.Host = c.config.Upstream.Host
	if c.config.HostHeader != "" {
		out.Host = c.config.HostHeader
	}

	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	// The transport negotiates gzip itself and hands back decoded bodies
	out.Header.Del("Accept-Encoding")
	if out.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		out.Header.Set("User-Agent", c.config.UserAgent)
	}
	return out
}

// classifyError categorizes an error for observability.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Reload marks req to bypass every intermediate HTTP cache, the equivalent
// of a fetch with cache mode "reload". It returns req for chaining.
func Reload(req *http.Request) *http.Request {
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	return req
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
