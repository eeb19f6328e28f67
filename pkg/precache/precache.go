package precache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/siteworker/pkg/cache"
	"github.com/Sternrassler/siteworker/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrBadStatus indicates a manifest asset answered with a non-2xx status.
var ErrBadStatus = errors.New("bad response status")

// Fetcher performs a single network fetch.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds precacher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per asset fetch (0 disables)
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Precacher fetches manifests.
type Precacher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a new precacher.
func New(fetcher Fetcher, config Config) *Precacher {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}
	return &Precacher{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "precache").Logger(),
	}
}

// FetchAll fetches every manifest path relative to origin and returns the
// cache items in manifest order. Any failure aborts the whole batch.
func (p *Precacher) FetchAll(ctx context.Context, origin *url.URL, paths []string) ([]cache.Item, error) {
	start := time.Now()
	items := make([]cache.Item, len(paths))

	p.logger.Info().
		Str("origin", origin.String()).
		Int("assets", len(paths)).
		Msg("Starting precache")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)

	for i, raw := range paths {
		g.Go(func() error {
			item, err := p.fetchOne(gctx, origin, raw)
			if err != nil {
				p.logger.Warn().Err(err).Str("asset", raw).Msg("Precache fetch failed")
				return err
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("precache %d assets: %w", len(paths), err)
	}

	p.logger.Info().
		Int("assets", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Precache complete")

	return items, nil
}

func (p *Precacher) fetchOne(ctx context.Context, origin *url.URL, raw string) (cache.Item, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return cache.Item{}, fmt.Errorf("parse asset %q: %w", raw, err)
	}
	target := origin.ResolveReference(ref)

	fetchCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	// The cache key is the plain request; only the fetch bypasses caches
	keyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return cache.Item{}, fmt.Errorf("create request: %w", err)
	}
	fetchReq := client.Reload(keyReq.Clone(fetchCtx))

	resp, err := p.fetcher.Do(fetchReq)
	if err != nil {
		return cache.Item{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cache.Item{}, fmt.Errorf("%w: %s answered %d", ErrBadStatus, target, resp.StatusCode)
	}

	entry, err := cache.ResponseToEntry(keyReq, resp)
	if err != nil {
		return cache.Item{}, fmt.Errorf("snapshot %s: %w", target, err)
	}
	return cache.Item{Request: keyReq, Entry: entry}, nil
}
