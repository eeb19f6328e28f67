// Package config loads the site worker configuration from the environment
// and the asset manifest from an optional YAML file.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/siteworker/pkg/logging"
	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the process configuration.
type Config struct {
	Addr         string `env:"SITEWORKER_ADDR" envDefault:":8080"`
	Origin       string `env:"SITEWORKER_ORIGIN" envDefault:"http://localhost:8080"`
	Upstream     string `env:"SITEWORKER_UPSTREAM" envDefault:"http://localhost:8000"`
	UpstreamHost string `env:"SITEWORKER_UPSTREAM_HOST"`
	UserAgent    string `env:"SITEWORKER_USER_AGENT" envDefault:"siteworker/1.0"`

	Version         string `env:"SITEWORKER_VERSION" envDefault:"portfolio-v1.0.0"`
	CacheNamePrefix string `env:"SITEWORKER_CACHE_PREFIX" envDefault:"portfolio-cache-"`
	RootDocument    string `env:"SITEWORKER_ROOT_DOCUMENT" envDefault:"/index.html"`
	ManifestFile    string `env:"SITEWORKER_MANIFEST"`

	Storage     string `env:"SITEWORKER_STORAGE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string `env:"SITEWORKER_REDIS_PREFIX" envDefault:"siteworker"`
	SQLitePath  string `env:"SITEWORKER_SQLITE_PATH" envDefault:"siteworker.db"`

	FetchTimeout        time.Duration `env:"SITEWORKER_FETCH_TIMEOUT" envDefault:"30s"`
	PrecacheConcurrency int           `env:"SITEWORKER_PRECACHE_CONCURRENCY" envDefault:"4"`
	PrecacheTimeout     time.Duration `env:"SITEWORKER_PRECACHE_TIMEOUT" envDefault:"15s"`
	ClientIdleTimeout   time.Duration `env:"SITEWORKER_CLIENT_IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval       time.Duration `env:"SITEWORKER_SWEEP_INTERVAL" envDefault:"1m"`
	ShutdownTimeout     time.Duration `env:"SITEWORKER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MessageToken, when set, is required as a bearer token on control
	// messages. Caches are shared by every visitor.
	MessageToken string `env:"SITEWORKER_MESSAGE_TOKEN"`

	LogLevel  string `env:"SITEWORKER_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"SITEWORKER_LOG_PRETTY"`
	LogFile   string `env:"SITEWORKER_LOG_FILE"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := c.OriginURL(); err != nil {
		return err
	}
	if _, err := c.UpstreamURL(); err != nil {
		return err
	}
	switch c.Storage {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage %q (want memory, redis or sqlite)", c.Storage)
	}
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout must be >= 0 (got %s)", c.FetchTimeout)
	}
	if c.PrecacheConcurrency < 1 {
		return fmt.Errorf("precache concurrency must be >= 1 (got %d)", c.PrecacheConcurrency)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be > 0 (got %s)", c.SweepInterval)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// OriginURL returns the public origin the worker serves.
func (c Config) OriginURL() (*url.URL, error) {
	return parseOrigin("origin", c.Origin)
}

// UpstreamURL returns the origin server network fetches go to.
func (c Config) UpstreamURL() (*url.URL, error) {
	return parseOrigin("upstream", c.Upstream)
}

func parseOrigin(name, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s scheme must be http or https (got %q)", name, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s host is required", name)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
