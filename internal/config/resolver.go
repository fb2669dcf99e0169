// Package config resolves service configuration from a YAML file, the
// environment, and CLI flags, in ascending precedence. String values carry
// their provenance so diagnostics can say where a setting came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueSource identifies where a resolved value came from.
type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a string setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Defaults applied when no layer supplies a value.
const (
	DefaultInterval = time.Hour
)

// ResolveOptions carries CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath     string
	CLIDBPath      string
	CLIListingsURL string
	CLIInterval    string
}

// Clustering holds the engine tuning options.
type Clustering struct {
	GroupingThreshold   int     `yaml:"grouping_threshold"`
	MaxCategoryChannels int     `yaml:"max_category_channels"`
	CategoryPrefix      string  `yaml:"category_prefix"`
	OptimizeOverlap     *bool   `yaml:"optimize_overlap"`
	AdaptiveThreshold   bool    `yaml:"adaptive_threshold"`
	ThresholdFactor     float64 `yaml:"threshold_factor"`
	SparseOverlap       int     `yaml:"sparse_overlap"`
}

// OptimizeOverlapEnabled reports the overlap-method selection, defaulting to
// the inverted-index method when the config file is silent.
func (c Clustering) OptimizeOverlapEnabled() bool {
	if c.OptimizeOverlap == nil {
		return true
	}
	return *c.OptimizeOverlap
}

// ResolvedConfig is the fully layered configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	ListingsURL ResolvedValue `json:"listings_url"`

	Interval       time.Duration `json:"interval"`
	IntervalSource ValueSource   `json:"interval_source"`

	Clustering Clustering `json:"clustering"`
}

type fileConfig struct {
	DBPath      string     `yaml:"db_path"`
	ListingsURL string     `yaml:"listings_url"`
	Interval    string     `yaml:"interval"`
	Clustering  Clustering `yaml:"clustering"`
}

// DefaultConfigPath is ~/.coursecluster/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".coursecluster", "config.yaml")
}

// Resolve layers file, environment, and CLI values. A missing config file is
// not an error; a malformed one is.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:     path,
		Interval:       DefaultInterval,
		IntervalSource: SourceDefault,
	}

	cfg, err := loadFile(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.ListingsURL, cfg.ListingsURL, SourceConfig, path)
		if err := applyInterval(&out, cfg.Interval, SourceConfig, path); err != nil {
			return out, err
		}
		out.Clustering = cfg.Clustering
	}

	applyEnv(&out.DBPath, "COURSECLUSTER_DB")
	applyEnv(&out.ListingsURL, "COURSECLUSTER_LISTINGS_URL")
	if v := strings.TrimSpace(os.Getenv("COURSECLUSTER_INTERVAL")); v != "" {
		if err := applyInterval(&out, v, SourceEnv, "COURSECLUSTER_INTERVAL"); err != nil {
			return out, err
		}
	}

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.ListingsURL, opts.CLIListingsURL, SourceCLI, "--listings-url")
	if err := applyInterval(&out, opts.CLIInterval, SourceCLI, "--interval"); err != nil {
		return out, err
	}

	return out, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: env}
	}
}

func applyInterval(out *ResolvedConfig, raw string, source ValueSource, from string) error {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing interval %q from %s: %w", v, from, err)
	}
	if d <= 0 {
		return fmt.Errorf("interval from %s must be positive, got %s", from, d)
	}
	out.Interval = d
	out.IntervalSource = source
	return nil
}
