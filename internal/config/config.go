// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
)

// Config holds every setting the commands read from the environment.
type Config struct {
	LedgerBackend string // LEDGER_BACKEND
	GCPProject    string // GCP_PROJECT
	BQDataset     string // BQ_DATASET
	GCSBucket     string // GCS_BUCKET

	NotionToken        string // NOTION_TOKEN
	NotionPaymentsDBID string // NOTION_PAYMENTS_DB_ID

	GeminiModel string // GEMINI_MODEL
	LogLevel    string // LOG_LEVEL
	HTTPPort    string // HTTP_PORT

	ReminderQueueSize int    // REMINDER_QUEUE_SIZE
	ReminderWorkers   int    // REMINDER_WORKERS
	SweepSchedule     string // SWEEP_SCHEDULE, cron syntax
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LedgerBackend:     BackendMemory,
		BQDataset:         "finance",
		GeminiModel:       "gemini-2.5-flash",
		LogLevel:          "info",
		HTTPPort:          "8080",
		ReminderQueueSize: 100,
		ReminderWorkers:   2,
		SweepSchedule:     "@daily",
	}
}

// Load reads the named .env files (".env" when none are given) and then the
// environment. Missing .env files are ignored; variables already set in the
// environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("Load: reading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LEDGER_BACKEND", &cfg.LedgerBackend)
	str("GCP_PROJECT", &cfg.GCPProject)
	str("BQ_DATASET", &cfg.BQDataset)
	str("GCS_BUCKET", &cfg.GCSBucket)
	str("NOTION_TOKEN", &cfg.NotionToken)
	str("NOTION_PAYMENTS_DB_ID", &cfg.NotionPaymentsDBID)
	str("GEMINI_MODEL", &cfg.GeminiModel)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("HTTP_PORT", &cfg.HTTPPort)
	str("SWEEP_SCHEDULE", &cfg.SweepSchedule)

	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", key, v))
			return
		}
		*dst = n
	}
	num("REMINDER_QUEUE_SIZE", &cfg.ReminderQueueSize)
	num("REMINDER_WORKERS", &cfg.ReminderWorkers)

	cfg.LedgerBackend = strings.ToLower(cfg.LedgerBackend)
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("FromEnv: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.LedgerBackend {
	case BackendMemory:
	case BackendBigQuery:
		if c.GCPProject == "" {
			return errors.New("GCP_PROJECT is required for the bigquery backend")
		}
		if c.BQDataset == "" {
			return errors.New("BQ_DATASET is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}
