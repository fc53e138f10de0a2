// Package config provides configuration loading and management for the application.
//
// Values are resolved in layers: built-in defaults, then an optional TOML
// file, then environment variables (a .env file in the working directory is
// loaded into the environment first and never overrides variables that are
// already set).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/defi-airdrop-feed/internal/acquire"
	"github.com/yourorg/defi-airdrop-feed/internal/circuitbreaker"
	"github.com/yourorg/defi-airdrop-feed/internal/export"
	"github.com/yourorg/defi-airdrop-feed/internal/fetch"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig           `toml:"server"`
	Sources   SourcesConfig          `toml:"sources"`
	Transport fetch.Options          `toml:"transport"`
	Cache     CacheConfig            `toml:"cache"`
	Stats     fetch.StatsOptions     `toml:"stats"`
	Market    fetch.MarketOptions    `toml:"market"`
	Policy    acquire.Policy         `toml:"policy"`
	Breaker   circuitbreaker.Options `toml:"breaker"`
	RateLimit RateLimitConfig        `toml:"rate_limit"`
	Export    export.Config          `toml:"export"`
	Signing   SigningConfig          `toml:"signing"`
	Telemetry TelemetryConfig        `toml:"telemetry"`
	Log       LogConfig              `toml:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            string        `toml:"port"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	CORSOrigin      string        `toml:"cors_origin"`
	WarmUp          bool          `toml:"warm_up"`
	EnableMetrics   bool          `toml:"enable_metrics"`
}

// SourcesConfig holds the upstream endpoints
type SourcesConfig struct {
	ListingURL string `toml:"listing_url"`
	StatsURL   string `toml:"stats_url"`
	MarketURL  string `toml:"market_url"`
}

// CacheConfig configures the record cache
type CacheConfig struct {
	TTL time.Duration `toml:"ttl"`
}

// RateLimitConfig configures the token bucket in front of the API
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// SigningConfig holds the snapshot signing key
type SigningConfig struct {
	// PrivateKey is hex encoded; empty generates an ephemeral key
	PrivateKey string `toml:"private_key"`
}

// TelemetryConfig configures tracing
type TelemetryConfig struct {
	OtelEndpoint string `toml:"otel_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "3000",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigin:      "*",
			WarmUp:          true,
			EnableMetrics:   true,
		},
		Sources: SourcesConfig{
			ListingURL: "https://defillama.com/airdrops",
			StatsURL:   "https://api.llama.fi/protocols",
			MarketURL:  "https://api.dexscreener.com",
		},
		Transport: fetch.DefaultOptions(),
		Cache:     CacheConfig{TTL: 5 * time.Minute},
		Stats:     fetch.DefaultStatsOptions(),
		Market:    fetch.DefaultMarketOptions(),
		Policy:    acquire.DefaultPolicy(),
		Breaker:   circuitbreaker.DefaultOptions(),
		RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
		Export:    export.DefaultConfig(),
		Telemetry: TelemetryConfig{ServiceName: "defi-airdrop-feed"},
		Log:       LogConfig{Format: "text", Level: "info"},
	}
}

// Load resolves the configuration. An empty path falls back to CONFIG_FILE;
// with neither set no file is read.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	cfg := Default()

	if path == "" {
		path = GetEnvOrDefault("CONFIG_FILE", "")
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			logrus.Warnf("Ignoring unknown config keys in %s: %v", path, undecoded)
		}
		logrus.Infof("Loaded configuration from %s", path)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = GetEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.RequestTimeout = GetEnvAsDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.ShutdownTimeout = GetEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigin = GetEnvOrDefault("CORS_ORIGIN", cfg.Server.CORSOrigin)
	cfg.Server.WarmUp = GetEnvAsBool("CACHE_WARM_UP", cfg.Server.WarmUp)
	cfg.Server.EnableMetrics = GetEnvAsBool("ENABLE_METRICS", cfg.Server.EnableMetrics)

	cfg.Sources.ListingURL = GetEnvOrDefault("LISTING_URL", cfg.Sources.ListingURL)
	cfg.Sources.StatsURL = GetEnvOrDefault("STATS_URL", cfg.Sources.StatsURL)
	cfg.Sources.MarketURL = GetEnvOrDefault("MARKET_URL", cfg.Sources.MarketURL)

	cfg.Transport.Timeout = GetEnvAsDuration("HTTP_TIMEOUT", cfg.Transport.Timeout)
	cfg.Transport.RetryMax = GetEnvAsInt("HTTP_RETRY_MAX", cfg.Transport.RetryMax)
	cfg.Transport.UserAgent = GetEnvOrDefault("HTTP_USER_AGENT", cfg.Transport.UserAgent)

	cfg.Cache.TTL = GetEnvAsDuration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Stats.MinTVL = GetEnvAsFloat("STATS_MIN_TVL", cfg.Stats.MinTVL)
	cfg.Stats.Limit = GetEnvAsInt("STATS_LIMIT", cfg.Stats.Limit)
	cfg.Market.SeedTokens = GetEnvAsList("MARKET_SEED_TOKENS", cfg.Market.SeedTokens)
	cfg.Market.MinVolume = GetEnvAsFloat("MARKET_MIN_VOLUME", cfg.Market.MinVolume)
	cfg.Market.TopLimit = GetEnvAsInt("MARKET_TOP_LIMIT", cfg.Market.TopLimit)

	cfg.Policy.RecentWindow = GetEnvAsDuration("RECENT_WINDOW", cfg.Policy.RecentWindow)

	cfg.Breaker.FailureThreshold = GetEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold)
	cfg.Breaker.Cooldown = GetEnvAsDuration("CIRCUIT_RESET_DELAY", cfg.Breaker.Cooldown)
	cfg.Breaker.SuccessThreshold = GetEnvAsInt("CIRCUIT_SUCCESS_THRESHOLD", cfg.Breaker.SuccessThreshold)

	cfg.RateLimit.RPS = GetEnvAsFloat("RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = GetEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Export.URL = GetEnvOrDefault("WEBHOOK_URL", cfg.Export.URL)
	cfg.Export.APIKey = GetEnvOrDefault("WEBHOOK_API_KEY", cfg.Export.APIKey)
	cfg.Export.BatchSize = GetEnvAsInt("WEBHOOK_BATCH_SIZE", cfg.Export.BatchSize)
	cfg.Export.Interval = GetEnvAsDuration("WEBHOOK_INTERVAL", cfg.Export.Interval)

	cfg.Signing.PrivateKey = GetEnvOrDefault("SIGNING_PRIVATE_KEY", cfg.Signing.PrivateKey)

	cfg.Telemetry.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OtelEndpoint)
	cfg.Telemetry.ServiceName = GetEnvOrDefault("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)

	cfg.Log.Format = strings.ToLower(GetEnvOrDefault("LOG_FORMAT", cfg.Log.Format))
	cfg.Log.Level = strings.ToLower(GetEnvOrDefault("LOG_LEVEL", cfg.Log.Level))
}

// Validate reports every invalid value at once
func (c Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	for name, raw := range map[string]string{
		"listing url": c.Sources.ListingURL,
		"stats url":   c.Sources.StatsURL,
		"market url":  c.Sources.MarketURL,
	} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Export.URL != "" {
		if err := checkURL(c.Export.URL); err != nil {
			errs = append(errs, fmt.Errorf("webhook url: %w", err))
		}
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.Transport.RetryMax < 0 {
		errs = append(errs, errors.New("retry max must not be negative"))
	}
	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		errs = append(errs, errors.New("circuit breaker thresholds must be at least 1"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("invalid rate limit %v/s burst %d", c.RateLimit.RPS, c.RateLimit.Burst))
	}
	for i, tier := range c.Policy.ValueTiers {
		if tier.Value == "" {
			errs = append(errs, fmt.Errorf("value tier %d has no value", i))
		}
		if i > 0 && tier.MinTVL >= c.Policy.ValueTiers[i-1].MinTVL {
			errs = append(errs, fmt.Errorf("value tier %d is not below tier %d", i, i-1))
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) url", raw)
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.Warnf("Invalid integer in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.Warnf("Invalid float in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("Invalid duration in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logrus.Warnf("Invalid boolean in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsList splits a comma-separated environment variable, dropping blanks
func GetEnvAsList(key string, defaultValue []string) []string {
	value, exists := GetEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
