package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plateworks/fordon/internal/shell/lookup"
	"github.com/plateworks/fordon/internal/shell/store"
	"github.com/plateworks/fordon/internal/shell/upstream"
	"github.com/spf13/viper"
)

// Config holds the client configuration, read from the environment.
type Config struct {
	Upstream struct {
		BaseURL           string        `mapstructure:"base_url"`
		Timeout           time.Duration `mapstructure:"timeout"`
		SessionCookie     string        `mapstructure:"session_cookie"`
		CFClearanceCookie string        `mapstructure:"cf_clearance_cookie"`
		AntiforgeryCookie string        `mapstructure:"antiforgery_cookie"`
	} `mapstructure:"upstream"`

	Cache struct {
		DSN string        `mapstructure:"dsn"`
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
}

// LoadConfig reads client configuration from FORDON_* environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("upstream.base_url", "https://biluppgifter.se")
	v.SetDefault("upstream.timeout", "20s")
	v.SetDefault("upstream.session_cookie", "")
	v.SetDefault("upstream.cf_clearance_cookie", "")
	v.SetDefault("upstream.antiforgery_cookie", "")
	v.SetDefault("cache.dsn", defaultCacheDSN())
	v.SetDefault("cache.ttl", "15m")

	v.SetEnvPrefix("FORDON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// defaultCacheDSN places the client's lookup cache under the user cache
// directory, falling back to a relative path when none is available.
func defaultCacheDSN() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "./fordonctl.db"
	}
	return filepath.Join(dir, "fordonctl", "cache.db")
}

// newApp wires the lookup service for the CLI. The returned cleanup
// closes the cache database.
func newApp(cfg *Config) (*lookup.Service, func(), error) {
	client := upstream.NewHTTPClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		Timeout:           cfg.Upstream.Timeout,
		SessionCookie:     cfg.Upstream.SessionCookie,
		CFClearanceCookie: cfg.Upstream.CFClearanceCookie,
		AntiforgeryCookie: cfg.Upstream.AntiforgeryCookie,
	}, nil)

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.DSN), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Cache.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	svc, err := lookup.NewService(client, s, lookup.Config{CacheTTL: cfg.Cache.TTL}, nil)
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	return svc, func() { _ = s.Close() }, nil
}
