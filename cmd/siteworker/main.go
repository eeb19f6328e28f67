// Command siteworker serves a static site through a versioned cache agent:
// critical assets are cached on install, static files are served
// cache-first, pages network-first with an offline fallback.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/siteworker/internal/config"
	"github.com/Sternrassler/siteworker/pkg/cache"
	"github.com/Sternrassler/siteworker/pkg/client"
	"github.com/Sternrassler/siteworker/pkg/host"
	"github.com/Sternrassler/siteworker/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// set at build time
var buildVersion = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "siteworker: %v\n", err)
		os.Exit(2)
	}

	var logFile io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "siteworker: open log file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		logFile = f
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.Setup(logging.Config{
		Level:   level,
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		File:    logFile,
		Version: buildVersion,
	})
	logger := logging.NewLogger("siteworker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Site worker failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()
	logger.Info().Str("backend", storage.Backend()).Msg("Cache storage ready")

	upstream, _ := cfg.UpstreamURL()
	clientCfg := client.DefaultConfig(upstream)
	clientCfg.HostHeader = cfg.UpstreamHost
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Timeout = cfg.FetchTimeout
	fetcher, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer fetcher.Close()

	reg := host.NewRegistration(host.NewClients(cfg.ClientIdleTimeout), nil)
	srv, err := newServer(cfg, storage, fetcher, reg, logger)
	if err != nil {
		return err
	}

	if err := srv.reload(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("origin", srv.origin.String()).
			Str("upstream", upstream.String()).
			Msg("Starting site worker")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := srv.reload(gctx); err != nil {
					logger.Error().Err(err).Msg("Manifest reload failed")
				}
			case <-ticker.C:
				if err := reg.Sweep(gctx); err != nil {
					logger.Warn().Err(err).Msg("Sweep failed")
				}
			}
		}
	})

	return g.Wait()
}

// openStorage builds the cache storage for the configured backend.
func openStorage(ctx context.Context, cfg config.Config) (*cache.Storage, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return cache.NewStorage(cache.NewRedisDriver(redisClient, cfg.RedisPrefix)), nil
	case config.StorageSQLite:
		driver, err := cache.OpenSQLiteDriver(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return cache.NewStorage(driver), nil
	default:
		return cache.NewStorage(cache.NewMemoryDriver()), nil
	}
}
