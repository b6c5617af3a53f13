package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfigIsValid tests the defaults pass validation
func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

// TestValidate tests the range checks
func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"auto threshold zero", func(c *Config) { c.PersonAutoMergeThreshold = 0 }, true},
		{"auto threshold above one", func(c *Config) { c.PersonAutoMergeThreshold = 1.2 }, true},
		{"review above auto", func(c *Config) { c.PersonReviewThreshold = 0.99 }, true},
		{"fuzzy threshold negative", func(c *Config) { c.CompanyFuzzyThreshold = -0.1 }, true},
		{"zero scan limit", func(c *Config) { c.ScanLimit = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative timeout", func(c *Config) { c.ScanTimeout = -time.Second }, true},
		{"equal thresholds", func(c *Config) {
			c.PersonAutoMergeThreshold = 0.9
			c.PersonReviewThreshold = 0.9
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

// TestLoadYAMLAndEnvPrecedence tests file loading with env overrides on top
func TestLoadYAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fundscope.yaml")
	yaml := `
db_path: /tmp/from-file.db
person_review_threshold: 0.7
scan_limit: 100
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("FUNDSCOPE_DB", "/tmp/from-env.db")
	t.Setenv("FUNDSCOPE_WORKERS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/tmp/from-env.db" {
		t.Errorf("env should override file: db path = %q", cfg.DBPath)
	}
	if cfg.PersonReviewThreshold != 0.7 {
		t.Errorf("file value not applied: review threshold = %f", cfg.PersonReviewThreshold)
	}
	if cfg.ScanLimit != 100 {
		t.Errorf("file value not applied: scan limit = %d", cfg.ScanLimit)
	}
	if cfg.Workers != 8 {
		t.Errorf("env value not applied: workers = %d", cfg.Workers)
	}
	// Untouched settings keep their defaults.
	if cfg.PersonAutoMergeThreshold != 0.95 {
		t.Errorf("default lost: auto merge threshold = %f", cfg.PersonAutoMergeThreshold)
	}
}

// TestLoadMissingFile tests that a missing file is not an error
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if cfg.ScanLimit != 500 {
		t.Errorf("expected defaults, got scan limit %d", cfg.ScanLimit)
	}
}

// TestEnvParsingIgnoresGarbage tests malformed env values fall back
func TestEnvParsingIgnoresGarbage(t *testing.T) {
	t.Setenv("FUNDSCOPE_WORKERS", "not-a-number")
	t.Setenv("FUNDSCOPE_REVIEW_THRESHOLD", "high")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("garbage env should keep default workers, got %d", cfg.Workers)
	}
	if cfg.PersonReviewThreshold != 0.80 {
		t.Errorf("garbage env should keep default threshold, got %f", cfg.PersonReviewThreshold)
	}
}
