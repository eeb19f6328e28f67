// Package agent implements the site worker: a versioned cache agent that
// warms a named cache on install, garbage-collects caches of other versions
// on activate, serves requests cache-first or network-first, and reacts to
// control messages from pages.
//
// The agent owns no global state. Its version, and with it the name of its
// cache, is fixed at construction; deploying new content means constructing
// an agent with a new version and registering it with the host.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/siteworker/pkg/cache"
	"github.com/Sternrassler/siteworker/pkg/precache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCacheNamePrefix is prepended to the version to name the cache.
	DefaultCacheNamePrefix = "portfolio-cache-"

	// DefaultRootDocument is the last-resort fallback for documents.
	DefaultRootDocument = "/index.html"
)

// ErrNoResponse is returned by Fetch when neither the network nor the cache
// can produce a response.
var ErrNoResponse = errors.New("no response available")

// Fetcher performs a network fetch.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f FetcherFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Host is the lifecycle host the agent runs in.
type Host interface {
	// SkipWaiting promotes the agent to active without waiting for the
	// clients of the previous version to go away.
	SkipWaiting(ctx context.Context, a *Agent) error
	// Claim makes the agent the controller of every open client.
	Claim(ctx context.Context, a *Agent) error
}

type noopHost struct{}

func (noopHost) SkipWaiting(context.Context, *Agent) error { return nil }
func (noopHost) Claim(context.Context, *Agent) error       { return nil }

// Config holds the agent configuration.
type Config struct {
	// Origin is the agent's own origin; other origins are never intercepted.
	Origin *url.URL

	// Version tags the cache. Bumping it invalidates every cached response
	// on the next activation.
	Version string

	// CacheNamePrefix is prepended to Version (default "portfolio-cache-").
	CacheNamePrefix string

	// Manifest lists the paths cached on install.
	Manifest []string

	// RootDocument is served when a document is offline and uncached
	// (default "/index.html").
	RootDocument string

	// Storage holds the named caches.
	Storage *cache.Storage

	// Fetcher performs network fetches.
	Fetcher Fetcher

	// Host receives skip-waiting and claim calls (optional).
	Host Host

	// Precache tunes the install-time fetches.
	Precache precache.Config

	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Agent is one version of the site worker.
type Agent struct {
	origin       *url.URL
	version      string
	cacheName    string
	manifest     []string
	rootDocument string
	storage      *cache.Storage
	fetcher      Fetcher
	host         Host
	precacher    *precache.Precacher
	logger       zerolog.Logger
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Origin == nil || cfg.Origin.Scheme == "" || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute url")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	prefix := cfg.CacheNamePrefix
	if prefix == "" {
		prefix = DefaultCacheNamePrefix
	}
	root := cfg.RootDocument
	if root == "" {
		root = DefaultRootDocument
	}
	host := cfg.Host
	if host == nil {
		host = noopHost{}
	}

	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = log.Logger
	} else {
		logger = *cfg.Logger
	}
	logger = logger.With().
		Str("component", "agent").
		Str("version", cfg.Version).
		Logger()

	origin := &url.URL{Scheme: cfg.Origin.Scheme, Host: cfg.Origin.Host}

	return &Agent{
		origin:       origin,
		version:      cfg.Version,
		cacheName:    prefix + cfg.Version,
		manifest:     append([]string(nil), cfg.Manifest...),
		rootDocument: root,
		storage:      cfg.Storage,
		fetcher:      cfg.Fetcher,
		host:         host,
		precacher:    precache.New(cfg.Fetcher, cfg.Precache),
		logger:       logger,
	}, nil
}

// Version returns the agent version.
func (a *Agent) Version() string { return a.version }

// CacheName returns the name of the cache owned by this version.
func (a *Agent) CacheName() string { return a.cacheName }

// Origin returns the agent's own origin.
func (a *Agent) Origin() *url.URL {
	u := *a.origin
	return &u
}
