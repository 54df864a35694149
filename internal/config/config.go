package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverCMS    = "cms"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Document store
	StoreDriver string
	CMSURL      string
	CMSToken    string
	CMSDataset  string
	SQLitePath  string
	StatsWindow time.Duration

	// Offers and placement
	CataloguePath  string
	LimitedMax     int
	MaxInsert      int
	SummaryHeading string

	// Batch behaviour
	BatchDelay   time.Duration
	DryRun       bool
	RunTTL       time.Duration
	MaxQueueSize int

	// Import
	MaxImportBytes       int64
	PDFFallbackPdftotext bool
}

// Load reads a .env file when present, then the environment. Variables
// already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the environment only.
func FromEnv() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("OFFERSPLICE_API_KEY"),

		StoreDriver: envOr("STORE_DRIVER", DriverCMS),
		CMSURL:      os.Getenv("CMS_URL"),
		CMSToken:    os.Getenv("CMS_TOKEN"),
		CMSDataset:  envOr("CMS_DATASET", "production"),
		SQLitePath:  envOr("SQLITE_PATH", "offersplice.db"),
		StatsWindow: envDuration("STORE_STATS_WINDOW", 15*time.Minute),

		CataloguePath:  envOr("CATALOGUE_PATH", "offers.yaml"),
		LimitedMax:     envInt("LIMITED_MAX", 2),
		MaxInsert:      envInt("MAX_INSERT", 0),
		SummaryHeading: os.Getenv("SUMMARY_HEADING"),

		BatchDelay:   envDuration("BATCH_DELAY", 500*time.Millisecond),
		DryRun:       envBool("DRY_RUN", false),
		RunTTL:       envDuration("RUN_TTL", 1*time.Hour),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 16),

		MaxImportBytes:       envInt64("MAX_IMPORT_BYTES", 20971520), // 20MB
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.LimitedMax <= 0 {
		cfg.LimitedMax = 2
	}
	if cfg.MaxInsert < 0 {
		cfg.MaxInsert = 0
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.MaxImportBytes <= 0 {
		cfg.MaxImportBytes = 20971520
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 15 * time.Minute
	}

	return cfg
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverCMS:
		if c.CMSURL == "" {
			return fmt.Errorf("CMS_URL is required for STORE_DRIVER=cms")
		}
		if c.CMSToken == "" {
			return fmt.Errorf("CMS_TOKEN is required for STORE_DRIVER=cms")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverCMS, DriverSQLite, c.StoreDriver)
	}
	if c.CataloguePath == "" {
		return fmt.Errorf("CATALOGUE_PATH is required")
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("OFFERSPLICE_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
