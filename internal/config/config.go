// Package config holds the engine's tunable settings. Precedence is
// defaults, then an optional YAML file, then FUNDSCOPE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls matching thresholds and scan behavior.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// PersonAutoMergeThreshold is the minimum similarity for an
	// automatic person merge. Shared context is still required.
	PersonAutoMergeThreshold float64 `yaml:"person_auto_merge_threshold"`

	// PersonReviewThreshold is the minimum similarity to queue a
	// person pair for human review.
	PersonReviewThreshold float64 `yaml:"person_review_threshold"`

	// CompanyFuzzyThreshold gates the resolver's fuzzy-name stage.
	CompanyFuzzyThreshold float64 `yaml:"company_fuzzy_threshold"`

	// ScanLimit bounds how many entities one scan loads.
	ScanLimit int `yaml:"scan_limit"`

	// Workers is the size of the scan comparison pool.
	Workers int `yaml:"workers"`

	// NormalizerCacheSize bounds each normalizer's memo cache.
	NormalizerCacheSize int `yaml:"normalizer_cache_size"`

	// ScanTimeout bounds one scan run. Zero means no timeout.
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath:                   defaultDBPath(),
		PersonAutoMergeThreshold: 0.95,
		PersonReviewThreshold:    0.80,
		CompanyFuzzyThreshold:    0.85,
		ScanLimit:                500,
		Workers:                  4,
		NormalizerCacheSize:      4096,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fundscope.db"
	}
	return filepath.Join(home, ".fundscope", "fundscope.db")
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"person_auto_merge_threshold", c.PersonAutoMergeThreshold},
		{"person_review_threshold", c.PersonReviewThreshold},
		{"company_fuzzy_threshold", c.CompanyFuzzyThreshold},
	} {
		if t.value <= 0 || t.value > 1 {
			return fmt.Errorf("%s must be in (0.0, 1.0] (got %.2f)", t.name, t.value)
		}
	}
	if c.PersonReviewThreshold > c.PersonAutoMergeThreshold {
		return fmt.Errorf("person_review_threshold (%.2f) cannot exceed person_auto_merge_threshold (%.2f)",
			c.PersonReviewThreshold, c.PersonAutoMergeThreshold)
	}
	if c.ScanLimit <= 0 {
		return fmt.Errorf("scan_limit must be positive (got %d)", c.ScanLimit)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if c.NormalizerCacheSize <= 0 {
		return fmt.Errorf("normalizer_cache_size must be positive (got %d)", c.NormalizerCacheSize)
	}
	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout cannot be negative (got %s)", c.ScanTimeout)
	}
	return nil
}

// Load reads a YAML config file over the defaults and then applies
// environment overrides. A missing file is not an error; env vars
// still apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FUNDSCOPE_DB"); v != "" {
		c.DBPath = v
	}
	c.PersonAutoMergeThreshold = parseEnvFloat("FUNDSCOPE_AUTO_MERGE_THRESHOLD", c.PersonAutoMergeThreshold)
	c.PersonReviewThreshold = parseEnvFloat("FUNDSCOPE_REVIEW_THRESHOLD", c.PersonReviewThreshold)
	c.CompanyFuzzyThreshold = parseEnvFloat("FUNDSCOPE_COMPANY_FUZZY_THRESHOLD", c.CompanyFuzzyThreshold)
	c.ScanLimit = parseEnvInt("FUNDSCOPE_SCAN_LIMIT", c.ScanLimit)
	c.Workers = parseEnvInt("FUNDSCOPE_WORKERS", c.Workers)
	c.NormalizerCacheSize = parseEnvInt("FUNDSCOPE_NORMALIZER_CACHE_SIZE", c.NormalizerCacheSize)
	c.ScanTimeout = parseEnvDuration("FUNDSCOPE_SCAN_TIMEOUT", c.ScanTimeout)
}

func parseEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
