package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arcsim/flock/engine"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := engine.DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadConfigOverridesOnlyMentionedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"num_cache_ways": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := engine.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NumCacheWays != 8 {
		t.Fatalf("expected overridden num_cache_ways=8, got %d", cfg.NumCacheWays)
	}
	if cfg.NumCacheSets != engine.DefaultConfig().NumCacheSets {
		t.Fatalf("expected untouched field to retain its default")
	}
}

func TestSaveConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := engine.DefaultConfig()
	cfg.NumCacheWays = 12

	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := engine.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.NumCacheWays != 12 {
		t.Fatalf("expected round-tripped num_cache_ways=12, got %d", loaded.NumCacheWays)
	}
}

func TestValidateRejectsZeroWays(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.NumCacheWays = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero ways")
	}
}
