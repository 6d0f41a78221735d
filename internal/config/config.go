package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the project root by Load.
const ConfigFileName = ".specsentry.yaml"

type DriftConfig struct {
	// MatchThreshold and above classifies a bullet pair as a match.
	MatchThreshold float64 `yaml:"match_threshold"`
	// GapThreshold up to MatchThreshold classifies as a gap; below is
	// a conflict.
	GapThreshold float64 `yaml:"gap_threshold"`
	WarnOnly     bool    `yaml:"warn_only"`
}

type RepairConfig struct {
	// DetectFloor is the minimum blended score for a rename candidate.
	DetectFloor float64 `yaml:"detect_floor"`
	// AutoFloor is the minimum score for unattended application.
	AutoFloor       float64  `yaml:"auto_floor"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type CacheConfig struct {
	DBPath   string `yaml:"db_path"`
	MemoSize int    `yaml:"memo_size"`
}

type WatchConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
}

// CollabConfig names the external collaborator commands. Each speaks
// JSON on stdin/stdout; empty means the corresponding operations are
// unavailable.
type CollabConfig struct {
	ReasonerCmd    []string `yaml:"reasoner_cmd"`
	ConsistencyCmd []string `yaml:"consistency_cmd"`
	ExtractorCmd   []string `yaml:"extractor_cmd"`
}

type Config struct {
	Root      string       `yaml:"-"`
	SpecDir   string       `yaml:"spec_dir"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"`
	Drift     DriftConfig  `yaml:"drift"`
	Repair    RepairConfig `yaml:"repair"`
	Cache     CacheConfig  `yaml:"cache"`
	Watch     WatchConfig  `yaml:"watch"`
	Collab    CollabConfig `yaml:"collab"`
}

func Default(root string) *Config {
	return &Config{
		Root:      root,
		SpecDir:   filepath.Join(root, "specs"),
		LogLevel:  "info",
		LogFormat: "text",
		Drift: DriftConfig{
			MatchThreshold: 0.8,
			GapThreshold:   0.4,
		},
		Repair: RepairConfig{
			DetectFloor: 0.7,
			AutoFloor:   0.9,
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/.git/**",
				"**/vendor/**",
				"**/__pycache__/**",
				"**/target/**",
				"**/build/**",
				"**/dist/**",
			},
		},
		Cache: CacheConfig{
			DBPath:   filepath.Join(root, ".specsentry", "cache.db"),
			MemoSize: 256,
		},
		Watch: WatchConfig{
			Enabled:        true,
			DebounceWindow: 300 * time.Millisecond,
			IgnorePatterns: []string{
				"**/.git/**",
				"**/node_modules/**",
				"**/*.log",
				"**/dist/**",
				"**/build/**",
				"**/vendor/**",
			},
		},
	}
}

// Load returns the defaults for root overlaid with .specsentry.yaml when
// the file exists. A missing file is not an error; a malformed one is.
func Load(root string) (*Config, error) {
	cfg := Default(root)

	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Drift.MatchThreshold < c.Drift.GapThreshold {
		return fmt.Errorf("drift: match_threshold %.2f below gap_threshold %.2f",
			c.Drift.MatchThreshold, c.Drift.GapThreshold)
	}
	if c.Repair.AutoFloor < c.Repair.DetectFloor {
		return fmt.Errorf("repair: auto_floor %.2f below detect_floor %.2f",
			c.Repair.AutoFloor, c.Repair.DetectFloor)
	}
	for _, pair := range []struct {
		name string
		v    float64
	}{
		{"drift.match_threshold", c.Drift.MatchThreshold},
		{"drift.gap_threshold", c.Drift.GapThreshold},
		{"repair.detect_floor", c.Repair.DetectFloor},
		{"repair.auto_floor", c.Repair.AutoFloor},
	} {
		if pair.v < 0 || pair.v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %.2f", pair.name, pair.v)
		}
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(filepath.Dir(c.Cache.DBPath), 0o700)
}
