package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/siteworker/pkg/cache"
)

// Strategy is the serving strategy chosen for a request.
type Strategy int

const (
	// StrategyPassThrough leaves the request to the default network
	// behavior; the agent produces no response.
	StrategyPassThrough Strategy = iota
	// StrategyCacheFirst serves static assets from the cache when present.
	StrategyCacheFirst
	// StrategyNetworkFirst serves documents from the network when reachable.
	StrategyNetworkFirst
)

func (s Strategy) String() string {
	switch s {
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkFirst:
		return "network-first"
	default:
		return "pass-through"
	}
}

// Source tells where a response came from.
type Source string

const (
	SourceCache        Source = "cache"
	SourceNetwork      Source = "network"
	SourceRootFallback Source = "root-fallback"
	SourceSynthetic    Source = "synthetic"
)

// Outcome is the result of dispatching one request.
type Outcome struct {
	Strategy Strategy
	// Source is empty for pass-through requests.
	Source Source
	// Stored reports whether a network response was written to the cache.
	Stored bool
	// Response is nil for pass-through requests.
	Response *http.Response
}

var staticExtension = regexp.MustCompile(`\.(jpg|jpeg|png|gif|ico|css|js|svg|woff|woff2|ttf|eot|otf|webp)$`)

// Destination returns the declared destination of a request
// (Sec-Fetch-Dest), lowercased. Empty when undeclared.
func Destination(req *http.Request) string {
	return strings.ToLower(strings.TrimSpace(req.Header.Get("Sec-Fetch-Dest")))
}

// SameOrigin reports whether u belongs to origin. Scheme and host compare
// case-insensitively and default ports are ignored.
func SameOrigin(origin, u *url.URL) bool {
	if origin == nil || u == nil {
		return false
	}
	return originOf(origin) == originOf(u)
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

// Classify picks the serving strategy for req. Cross-origin requests and
// same-origin requests that are neither static assets nor documents pass
// through.
func (a *Agent) Classify(req *http.Request) Strategy {
	u := a.resolve(req.URL)
	if !SameOrigin(a.origin, u) {
		return StrategyPassThrough
	}

	dest := Destination(req)
	path := u.EscapedPath()
	switch {
	case dest == "image" || dest == "style" || dest == "script" || dest == "font",
		staticExtension.MatchString(path):
		return StrategyCacheFirst
	case dest == "document", strings.HasSuffix(path, ".html"):
		return StrategyNetworkFirst
	default:
		return StrategyPassThrough
	}
}

func (a *Agent) resolve(u *url.URL) *url.URL {
	if u.IsAbs() {
		return u
	}
	return a.origin.ResolveReference(u)
}

// Fetch dispatches req according to its strategy and produces a response.
// Pass-through requests yield an Outcome without a response; the caller
// must let them go to the network untouched. ErrNoResponse is returned when
// neither network nor cache can answer.
func (a *Agent) Fetch(ctx context.Context, req *http.Request) (*Outcome, error) {
	strategy := a.Classify(req)
	if strategy == StrategyPassThrough {
		requestsTotal.WithLabelValues(strategy.String(), "").Inc()
		return &Outcome{Strategy: strategy}, nil
	}

	req = req.WithContext(ctx)
	if !req.URL.IsAbs() {
		req.URL = a.resolve(req.URL)
	}

	start := time.Now()
	var (
		out *Outcome
		err error
	)
	if strategy == StrategyCacheFirst {
		out, err = a.cacheFirst(ctx, req)
	} else {
		out, err = a.networkFirst(ctx, req)
	}
	requestDuration.WithLabelValues(strategy.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(strategy.String(), "none").Inc()
		return nil, err
	}
	out.Strategy = strategy
	requestsTotal.WithLabelValues(strategy.String(), string(out.Source)).Inc()
	return out, nil
}

func (a *Agent) cacheFirst(ctx context.Context, req *http.Request) (*Outcome, error) {
	entry, err := a.storage.Match(ctx, req)
	if err == nil {
		a.logger.Debug().Str("url", req.URL.String()).Msg("Cache hit")
		return &Outcome{Source: SourceCache, Response: cache.EntryToResponse(entry, req)}, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		a.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Cache lookup failed")
	}

	resp, entry, err := a.fetch(req)
	if err != nil {
		if Destination(req) == "image" {
			a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Image unavailable, serving placeholder")
			return &Outcome{Source: SourceSynthetic, Response: cache.EmptyResponse(req, http.StatusOK)}, nil
		}
		a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Asset unavailable")
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	return &Outcome{Source: SourceNetwork, Stored: a.store(ctx, req, entry), Response: resp}, nil
}

func (a *Agent) networkFirst(ctx context.Context, req *http.Request) (*Outcome, error) {
	resp, entry, err := a.fetch(req)
	if err == nil {
		return &Outcome{Source: SourceNetwork, Stored: a.store(ctx, req, entry), Response: resp}, nil
	}
	a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Network failed, falling back to cache")

	if cached, mErr := a.storage.Match(ctx, req); mErr == nil {
		return &Outcome{Source: SourceCache, Response: cache.EntryToResponse(cached, req)}, nil
	} else if !errors.Is(mErr, cache.ErrCacheMiss) {
		a.logger.Warn().Err(mErr).Str("url", req.URL.String()).Msg("Cache lookup failed")
	}

	root, rErr := http.NewRequestWithContext(ctx, http.MethodGet, a.origin.ResolveReference(&url.URL{Path: a.rootDocument}).String(), nil)
	if rErr == nil {
		if cached, mErr := a.storage.Match(ctx, root); mErr == nil {
			a.logger.Debug().Str("url", req.URL.String()).Msg("Serving root document")
			return &Outcome{Source: SourceRootFallback, Response: cache.EntryToResponse(cached, req)}, nil
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
}

// fetch goes to the network and duplicates the response: the returned
// response keeps a readable body and the entry holds the cache copy.
// A body that cannot be read counts as a network failure.
func (a *Agent) fetch(req *http.Request) (*http.Response, *cache.Entry, error) {
	resp, err := a.fetcher.Do(req)
	if err != nil {
		return nil, nil, err
	}
	entry, err := cache.ResponseToEntry(req, resp)
	if err != nil {
		return nil, nil, err
	}
	return resp, entry, nil
}

// store writes entry under req in the agent's cache. Failures are logged
// and never affect the response.
func (a *Agent) store(ctx context.Context, req *http.Request, entry *cache.Entry) bool {
	c, err := a.storage.Open(ctx, a.cacheName)
	if err == nil {
		err = c.Put(ctx, req, entry)
	}
	switch {
	case err == nil:
		return true
	case errors.Is(err, cache.ErrNotCacheable):
		a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Response not stored")
	default:
		storeFailuresTotal.Inc()
		a.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Cache store failed")
	}
	return false
}
