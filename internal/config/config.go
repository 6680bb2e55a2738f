package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds process-level settings, populated from environment variables.
// Operator-editable runtime settings (provider choice, webhook URL, schedule)
// live in the settings store instead and change without a restart.
type Config struct {
	DataDir         string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	ProviderTimeout time.Duration
	WebhookTimeout  time.Duration
	UserAgent       string
	PostalCountry   string

	// Geocoding configuration for postal-code resolution.
	GeocoderToken     string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	webhookTimeout, err := parseDuration("WEBHOOK_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         envOrDefault("DATA_DIR", "./data"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		ProviderTimeout: providerTimeout,
		WebhookTimeout:  webhookTimeout,
		UserAgent:       envOrDefault("USER_AGENT", "weather-alert-relay/1.0 (ops@couchcryptid.dev)"),
		PostalCountry:   envOrDefault("POSTAL_COUNTRY", "US"),

		GeocoderToken:     os.Getenv("GEOCODER_TOKEN"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseGeocoderCacheSize(),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.ProviderTimeout < 15*time.Second || cfg.ProviderTimeout > 30*time.Second {
		return nil, errors.New("PROVIDER_TIMEOUT must be between 15s and 30s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseGeocoderCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
