// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	// Persistence
	StoreDriver string // "sqlite" (default) or "postgres"
	StoreDSN    string
	DataDir     string // raw JSON snapshots
	ReportsDir  string // quality reports

	// Catalog source
	CatalogBaseURL  string
	CatalogPageSize int
	UserAgent       string

	// Geocoding
	GeocodeBaseURL   string
	GeocodeLimit     int // unique addresses resolved per run
	GeocodeWorkers   int
	GeocodeRateLimit float64 // requests per second

	// Recommendations (optional)
	GeminiAPIKey string
	GeminiModel  string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, with a best-effort .env
// file load first. Missing optional values fall back to defaults.
func Load() (*Config, error) {
	// A missing .env file is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		StoreDriver: getEnv("PIPELINE_STORE_DRIVER", "sqlite"),
		StoreDSN:    getEnv("PIPELINE_STORE_DSN", "data/catalog.sqlite"),
		DataDir:     getEnv("PIPELINE_DATA_DIR", "data/raw"),
		ReportsDir:  getEnv("PIPELINE_REPORTS_DIR", "reports"),

		CatalogBaseURL:  getEnv("PIPELINE_CATALOG_URL", ""),
		CatalogPageSize: getEnvAsInt("PIPELINE_CATALOG_PAGE_SIZE", 50),
		UserAgent:       getEnv("PIPELINE_USER_AGENT", "catalog-ingress/1.0"),

		GeocodeBaseURL:   getEnv("PIPELINE_GEOCODE_URL", ""),
		GeocodeLimit:     getEnvAsInt("PIPELINE_GEOCODE_LIMIT", 100),
		GeocodeWorkers:   getEnvAsInt("PIPELINE_GEOCODE_WORKERS", 1),
		GeocodeRateLimit: getEnvAsFloat("PIPELINE_GEOCODE_RPS", 10),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.StoreDriver != "sqlite" && c.StoreDriver != "postgres" {
		return errors.New("store driver must be sqlite or postgres")
	}
	if c.StoreDSN == "" {
		return errors.New("store DSN is required")
	}
	if c.GeocodeLimit <= 0 {
		return errors.New("geocode limit must be positive")
	}
	if c.GeocodeWorkers <= 0 {
		return errors.New("geocode workers must be positive")
	}
	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
