package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration. Environment variables provide
// defaults, an optional YAML file overlays them, and CLI flags win.
type Config struct {
	// Output
	OutputRoot string `yaml:"output_root"`

	// Worker pool
	Workers int `yaml:"workers"`

	// Discovery
	Recursive bool `yaml:"recursive"`
	ProbePDFs bool `yaml:"probe_pdfs"`

	// Layout engine
	ExtractorBin string `yaml:"extractor_bin"`
	Lang         string `yaml:"lang"`

	// Flattening
	CaptionProximity float64 `yaml:"caption_proximity"`

	// Document identity
	DocIDMetadataKey string `yaml:"doc_id_metadata_key"`

	// Enrichment service
	EnrichURL      string        `yaml:"enrich_url"`
	EnrichTimeout  time.Duration `yaml:"enrich_timeout"`
	EnrichAttempts int           `yaml:"enrich_attempts"`
	EnrichDisabled bool          `yaml:"enrich_disabled"`

	// Serve mode
	Port           string `yaml:"port"`
	APIKey         string `yaml:"api_key"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load builds a Config from environment variables with defaults.
func Load() Config {
	cfg := Config{
		OutputRoot: os.Getenv("DOCMILL_OUTPUT_ROOT"),

		Workers: envInt("DOCMILL_WORKERS", 4),

		ProbePDFs: envBool("DOCMILL_PROBE_PDFS", true),

		ExtractorBin: envOr("DOCMILL_EXTRACTOR_BIN", "mineru"),
		Lang:         envOr("DOCMILL_LANG", "en"),

		CaptionProximity: envFloat("DOCMILL_CAPTION_PROXIMITY", 0),

		DocIDMetadataKey: os.Getenv("DOCMILL_DOC_ID_METADATA_KEY"),

		EnrichURL:      envOr("DOCMILL_ENRICH_URL", "http://localhost:8070"),
		EnrichTimeout:  envDuration("DOCMILL_ENRICH_TIMEOUT", 30*time.Second),
		EnrichAttempts: envInt("DOCMILL_ENRICH_ATTEMPTS", 3),

		Port:           envOr("DOCMILL_PORT", "8090"),
		APIKey:         os.Getenv("DOCMILL_API_KEY"),
		MaxUploadBytes: envInt64("DOCMILL_MAX_UPLOAD_BYTES", 52428800), // 50MB

		LogLevel: envOr("DOCMILL_LOG_LEVEL", "info"),
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.EnrichAttempts <= 0 {
		cfg.EnrichAttempts = 3
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 30 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	return cfg
}

// ApplyFile overlays settings from a YAML config file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks invariants that must hold before a run starts.
func (c Config) Validate() error {
	if c.OutputRoot == "" {
		return fmt.Errorf("output root is required (flag --output or DOCMILL_OUTPUT_ROOT)")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.EnrichAttempts <= 0 {
		return fmt.Errorf("enrich attempts must be positive, got %d", c.EnrichAttempts)
	}
	return nil
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
