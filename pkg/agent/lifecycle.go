package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Install warms the agent's cache with every manifest asset, bypassing any
// intermediate HTTP cache. The batch is all-or-nothing: one failed or
// non-2xx fetch leaves the cache without any manifest entry.
//
// On success the host is asked to skip waiting. On failure the error is
// logged and returned; it is informational, the host treats the agent as
// installed either way and skip-waiting is not requested.
func (a *Agent) Install(ctx context.Context) error {
	start := time.Now()
	a.logger.Info().Str("cache", a.cacheName).Msg("Installing")

	n, err := a.precache(ctx)
	if err != nil {
		installsTotal.WithLabelValues("failed").Inc()
		a.logger.Error().Err(err).Msg("Cache installation failed")
		return fmt.Errorf("install %s: %w", a.version, err)
	}

	installsTotal.WithLabelValues("ok").Inc()
	a.logger.Info().
		Int("assets", n).
		Dur("duration", time.Since(start)).
		Msg("Critical assets cached")

	if err := a.host.SkipWaiting(ctx, a); err != nil {
		a.logger.Error().Err(err).Msg("Skip waiting failed")
		return fmt.Errorf("skip waiting: %w", err)
	}
	return nil
}

func (a *Agent) precache(ctx context.Context) (int, error) {
	c, err := a.storage.Open(ctx, a.cacheName)
	if err != nil {
		return 0, err
	}

	a.logger.Debug().Int("assets", len(a.manifest)).Msg("Caching critical assets")
	items, err := a.precacher.FetchAll(ctx, a.origin, a.manifest)
	if err != nil {
		return 0, err
	}
	if err := c.PutAll(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Activate deletes every cache whose name differs from the agent's own and
// then claims all open clients. Running it again is harmless.
//
// If any deletion fails the error is returned and the claim is skipped.
func (a *Agent) Activate(ctx context.Context) error {
	a.logger.Info().Msg("Activating")

	names, err := a.storage.Keys(ctx)
	if err != nil {
		activationsTotal.WithLabelValues("failed").Inc()
		a.logger.Error().Err(err).Msg("Listing caches failed")
		return fmt.Errorf("activate %s: %w", a.version, err)
	}

	var errs []error
	for _, name := range names {
		if name == a.cacheName {
			continue
		}
		a.logger.Info().Str("cache", name).Msg("Deleting old cache")
		if _, err := a.storage.Delete(ctx, name); err != nil {
			errs = append(errs, err)
			continue
		}
		cachesDeletedTotal.Inc()
	}
	if err := errors.Join(errs...); err != nil {
		activationsTotal.WithLabelValues("failed").Inc()
		a.logger.Error().Err(err).Msg("Deleting old caches failed")
		return fmt.Errorf("activate %s: %w", a.version, err)
	}

	if err := a.host.Claim(ctx, a); err != nil {
		activationsTotal.WithLabelValues("failed").Inc()
		a.logger.Error().Err(err).Msg("Claiming clients failed")
		return fmt.Errorf("claim clients: %w", err)
	}

	activationsTotal.WithLabelValues("ok").Inc()
	return nil
}
