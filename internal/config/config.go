package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rj-04/mimotune/internal/band"
	"github.com/rj-04/mimotune/internal/session"
	"github.com/rj-04/mimotune/internal/sweep"
)

// EnvConfigPath names the environment variable consulted when no config
// path is given.
const EnvConfigPath = "MIMOTUNE_CONFIG"

// Config is the on-disk configuration of a tuning run.
type Config struct {
	Sweep     Sweep                   `yaml:"sweep"`
	Results   sweep.ResultPaths       `yaml:"results"`
	Synthetic session.SyntheticConfig `yaml:"synthetic"`
	DataDir   string                  `yaml:"data_dir"`
	Server    Server                  `yaml:"server"`
}

// Sweep holds the scan settings.
type Sweep struct {
	Parameter       string        `yaml:"parameter"`
	Start           float64       `yaml:"start"`
	Step            float64       `yaml:"step"`
	Iterations      int           `yaml:"iterations"`
	ExclusionRadius float64       `yaml:"exclusion_radius"`
	SolveTimeout    time.Duration `yaml:"solve_timeout"`
}

// Server holds the HTTP job server settings.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration: a five-step patch length scan
// from 10.7 mm in 0.1 mm steps against the synthetic antenna.
func Default() *Config {
	return &Config{
		Sweep: Sweep{
			Parameter:       "patch_length",
			Start:           10.7,
			Step:            0.1,
			Iterations:      5,
			ExclusionRadius: band.DefaultExclusionRadius,
		},
		Results:   sweep.DefaultResultPaths(),
		Synthetic: session.DefaultSyntheticConfig(),
		DataDir:   "./data",
		Server:    Server{Addr: ":8080"},
	}
}

// Load reads a YAML configuration file. Fields absent from the file keep
// their defaults. An empty path falls back to $MIMOTUNE_CONFIG and then to
// the defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the sweep and synthetic model settings.
func (c *Config) Validate() error {
	if err := c.SweepConfig().Validate(); err != nil {
		return fmt.Errorf("invalid sweep config: %w", err)
	}
	if err := c.Synthetic.Validate(); err != nil {
		return fmt.Errorf("invalid synthetic config: %w", err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	return nil
}

// SweepConfig converts the file settings into a sweep.Config.
func (c *Config) SweepConfig() sweep.Config {
	return sweep.Config{
		Parameter:       c.Sweep.Parameter,
		Start:           c.Sweep.Start,
		Step:            c.Sweep.Step,
		Iterations:      c.Sweep.Iterations,
		ExclusionRadius: c.Sweep.ExclusionRadius,
		SolveTimeout:    c.Sweep.SolveTimeout,
		Paths:           c.Results,
	}
}
