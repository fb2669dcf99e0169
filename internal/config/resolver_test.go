package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestResolveDefaults(t *testing.T) {
	t.Setenv("COURSECLUSTER_DB", "")
	t.Setenv("COURSECLUSTER_INTERVAL", "")

	cfg, err := Resolve(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath.Value != "" {
		t.Fatalf("expected unset db path, got %+v", cfg.DBPath)
	}
	if cfg.Interval != DefaultInterval || cfg.IntervalSource != SourceDefault {
		t.Fatalf("expected default interval, got %s from %s", cfg.Interval, cfg.IntervalSource)
	}
	if !cfg.Clustering.OptimizeOverlapEnabled() {
		t.Fatal("overlap optimization must default to enabled")
	}
}

func TestResolveFromFile(t *testing.T) {
	t.Setenv("COURSECLUSTER_DB", "")
	t.Setenv("COURSECLUSTER_INTERVAL", "")

	path := writeConfig(t, `
db_path: /tmp/courses.db
listings_url: http://listings.local
interval: 30m
clustering:
  grouping_threshold: 3
  max_category_channels: 25
  category_prefix: SECTIONS
  optimize_overlap: false
  adaptive_threshold: true
  threshold_factor: 1.5
  sparse_overlap: 2
`)

	cfg, err := Resolve(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath.Value != "/tmp/courses.db" || cfg.DBPath.Source != SourceConfig {
		t.Fatalf("unexpected db path: %+v", cfg.DBPath)
	}
	if cfg.Interval != 30*time.Minute || cfg.IntervalSource != SourceConfig {
		t.Fatalf("unexpected interval: %s from %s", cfg.Interval, cfg.IntervalSource)
	}
	cl := cfg.Clustering
	if cl.GroupingThreshold != 3 || cl.MaxCategoryChannels != 25 || cl.CategoryPrefix != "SECTIONS" {
		t.Fatalf("unexpected clustering options: %+v", cl)
	}
	if cl.OptimizeOverlapEnabled() {
		t.Fatal("optimize_overlap: false must disable the inverted-index method")
	}
	if !cl.AdaptiveThreshold || cl.ThresholdFactor != 1.5 || cl.SparseOverlap != 2 {
		t.Fatalf("unexpected adaptive options: %+v", cl)
	}
}

func TestResolvePrecedence(t *testing.T) {
	path := writeConfig(t, "db_path: /from/file.db\ninterval: 10m\n")

	t.Setenv("COURSECLUSTER_DB", "/from/env.db")
	t.Setenv("COURSECLUSTER_INTERVAL", "20m")

	cfg, err := Resolve(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath.Value != "/from/env.db" || cfg.DBPath.Source != SourceEnv {
		t.Fatalf("env must override file, got %+v", cfg.DBPath)
	}
	if cfg.Interval != 20*time.Minute || cfg.IntervalSource != SourceEnv {
		t.Fatalf("env interval must override file, got %s from %s", cfg.Interval, cfg.IntervalSource)
	}

	cfg, err = Resolve(ResolveOptions{
		ConfigPath:  path,
		CLIDBPath:   "/from/cli.db",
		CLIInterval: "5m",
	})
	if err != nil {
		t.Fatalf("Resolve with CLI: %v", err)
	}
	if cfg.DBPath.Value != "/from/cli.db" || cfg.DBPath.Source != SourceCLI {
		t.Fatalf("cli must override env, got %+v", cfg.DBPath)
	}
	if cfg.Interval != 5*time.Minute || cfg.IntervalSource != SourceCLI {
		t.Fatalf("cli interval must override env, got %s from %s", cfg.Interval, cfg.IntervalSource)
	}
}

func TestResolveRejectsBadInterval(t *testing.T) {
	if _, err := Resolve(ResolveOptions{
		ConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		CLIInterval: "soon",
	}); err == nil {
		t.Fatal("expected error for unparseable interval")
	}
	if _, err := Resolve(ResolveOptions{
		ConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		CLIInterval: "-5m",
	}); err == nil {
		t.Fatal("expected error for non-positive interval")
	}
}

func TestResolveRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "db_path: [broken\n")
	if _, err := Resolve(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
