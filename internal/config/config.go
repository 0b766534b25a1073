package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultAPIURL      = "http://localhost:8000/api"
	DefaultAssetURL    = "http://localhost:8000"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the settings needed to reach the catalog API
type Config struct {
	APIURL          string
	AssetURL        string
	CredentialsPath string
	HTTPTimeout     time.Duration
}

// Load reads configuration from the environment, falling back to defaults.
// A .env file is expected to have been loaded by the caller.
func Load() (Config, error) {
	cfg := Config{
		APIURL:          getenv("CATALOG_API_URL", DefaultAPIURL),
		AssetURL:        getenv("CATALOG_ASSET_URL", DefaultAssetURL),
		CredentialsPath: os.Getenv("CATALOG_CREDENTIALS"),
		HTTPTimeout:     DefaultHTTPTimeout,
	}

	if raw := os.Getenv("CATALOG_HTTP_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CATALOG_HTTP_TIMEOUT %q: %w", raw, err)
		}
		cfg.HTTPTimeout = timeout
	}

	if cfg.CredentialsPath == "" {
		path, err := defaultCredentialsPath()
		if err != nil {
			return Config{}, err
		}
		cfg.CredentialsPath = path
	}

	return cfg, nil
}

func defaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "catalog-admin", "credentials.yaml"), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
