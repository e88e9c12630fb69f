// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the settings shared by the binaries.
type Config struct {
	Port string

	DatabaseDriver string
	DatabaseDSN    string

	EmailerURL string
	DemoMode   bool

	RedisAddr     string
	RedisPassword string

	AMQPURL     string
	EventsQueue string

	GCSBucket       string
	BigQueryProject string
	BigQueryDataset string

	NotionToken     string
	NotionRentsDBID string

	VATInclusiveInput bool
	LogLevel          string
	ImportWorkers     int
}

// Load reads .env files when present, then the environment.
// Missing .env files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseDriver:  strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseDSN:     getEnv("DATABASE_DSN", "rent-ledger.db"),
		EmailerURL:      getEnv("EMAILER_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		AMQPURL:         getEnv("AMQP_URL", ""),
		EventsQueue:     getEnv("EVENTS_QUEUE", "rent-events"),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "rent_ledger"),
		NotionToken:     getEnv("NOTION_TOKEN", ""),
		NotionRentsDBID: getEnv("NOTION_RENTS_DB_ID", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.DemoMode, err = getEnvBool("DEMO_MODE", false); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if cfg.VATInclusiveInput, err = getEnvBool("VAT_INCLUSIVE_INPUT", false); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if cfg.ImportWorkers, err = getEnvInt("IMPORT_WORKERS", 4); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.ImportWorkers < 1 {
		return fmt.Errorf("IMPORT_WORKERS must be at least 1, got %d", c.ImportWorkers)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
