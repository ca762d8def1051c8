// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
	AllowedOrigins []string      // CORS + WS origins; empty = allow all (dev)
}

// StoreConfig selects and parameterises the snapshot backend.
type StoreConfig struct {
	Backend    string // "file" | "sqlite"
	DataDir    string // file backend: directory for the JSON documents
	SQLitePath string // sqlite backend: database file path
}

// MarketConfig holds the paper-market tunables.
type MarketConfig struct {
	StartingCash float64 // paper dollars granted to a fresh account
	RateLimitRPS int     // per-IP request allowance for mutating endpoints
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Market MarketConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case "file":
		if c.Store.DataDir == "" {
			errs = append(errs, errors.New("STORE_DATA_DIR must be set for the file backend"))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("STORE_SQLITE_PATH must be set for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be file or sqlite, got %q", c.Store.Backend))
	}

	if c.Market.StartingCash <= 0 {
		errs = append(errs, fmt.Errorf("MARKET_STARTING_CASH must be positive, got %.2f", c.Market.StartingCash))
	}
	if c.Market.RateLimitRPS < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be at least 1, got %d", c.Market.RateLimitRPS))
	}

	if c.IsProd() && len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("ALLOWED_ORIGINS must be set in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	cfg.Store = StoreConfig{
		Backend:    getEnv("STORE_BACKEND", "file"),
		DataDir:    getEnv("STORE_DATA_DIR", "./data"),
		SQLitePath: getEnv("STORE_SQLITE_PATH", "./data/memdex.db"),
	}

	// ── Market ────────────────────────────────────────────────────────────────
	startingCash, err := getFloat("MARKET_STARTING_CASH", 1000)
	if err != nil {
		return nil, fmt.Errorf("MARKET_STARTING_CASH: %w", err)
	}
	rps, err := getInt("RATE_LIMIT_RPS", 30)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}

	cfg.Market = MarketConfig{
		StartingCash: startingCash,
		RateLimitRPS: rps,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitList splits a comma-separated env value, trimming blanks.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
