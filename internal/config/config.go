// Package config provides unified configuration loading for repel.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/repel/internal/sim"
	"gopkg.in/yaml.v3"
)

// Config contains all repel configuration settings.
type Config struct {
	// Sim contains kernel and backend settings.
	Sim SimConfig `json:"sim" yaml:"sim"`

	// Init contains population seeding settings.
	Init InitConfig `json:"init" yaml:"init"`

	// Frames contains frame script output settings.
	Frames FramesConfig `json:"frames" yaml:"frames"`

	// Watch contains live viewer settings.
	Watch WatchConfig `json:"watch" yaml:"watch"`

	// Record contains run metrics recording settings.
	Record RecordConfig `json:"record" yaml:"record"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimConfig configures the relaxation kernel and its execution backend.
type SimConfig struct {
	// Backend selects the execution strategy: "threads" (default) or "grid".
	Backend string `json:"backend" yaml:"backend"`

	// Workers is the threads backend pool size. 0 uses all CPUs.
	Workers int `json:"workers" yaml:"workers"`

	// GridBlock is the grid backend block size. 0 uses the built-in default.
	GridBlock int `json:"grid_block" yaml:"grid_block"`

	// Epsilon is the overlap detection slack and denominator stabilizer.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	// RelaxK divides each correction to damp the relaxation step.
	RelaxK float64 `json:"relax_k" yaml:"relax_k"`
}

// InitConfig configures the seeded random population.
type InitConfig struct {
	// Seed for the sequential pseudo-random initializer. The same seed
	// always produces the same population.
	Seed int64 `json:"seed" yaml:"seed"`

	// MinX, MaxX, MinY, MaxY bound the box circle centers are seeded into.
	MinX float64 `json:"min_x" yaml:"min_x"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxY float64 `json:"max_y" yaml:"max_y"`

	// MinRadius and MaxRadius bound the radius interval. MinRadius
	// must be positive.
	MinRadius float64 `json:"min_radius" yaml:"min_radius"`
	MaxRadius float64 `json:"max_radius" yaml:"max_radius"`
}

// FramesConfig configures the per-iteration plot script side channel.
type FramesConfig struct {
	// Enabled turns on frame script output.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory frame scripts are written into.
	Dir string `json:"dir" yaml:"dir"`
}

// WatchConfig configures the live browser viewer.
type WatchConfig struct {
	// MaxFPS caps the frame rate streamed to each viewer client.
	// 0 streams every frame.
	MaxFPS float64 `json:"max_fps" yaml:"max_fps"`

	// OpenBrowser opens the system browser at the viewer URL on start.
	OpenBrowser bool `json:"open_browser" yaml:"open_browser"`
}

// RecordConfig configures run metrics recording.
type RecordConfig struct {
	// Enabled turns on metrics recording for every run.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the metrics database file. Empty uses ~/.repel/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures repel's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables iteration tracing to .repel/trace.jsonl.
	// "trace" additionally includes full per-iteration detail.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	bounds := sim.DefaultBounds()
	radii := sim.DefaultRadiusRange()
	return &Config{
		Sim: SimConfig{
			Backend:   string(sim.KindThreads),
			Workers:   0,
			GridBlock: 0,
			Epsilon:   sim.DefaultEpsilon,
			RelaxK:    sim.DefaultRelaxK,
		},
		Init: InitConfig{
			Seed:      1,
			MinX:      bounds.MinX,
			MaxX:      bounds.MaxX,
			MinY:      bounds.MinY,
			MaxY:      bounds.MaxY,
			MinRadius: radii.Min,
			MaxRadius: radii.Max,
		},
		Frames: FramesConfig{
			Enabled: false,
			Dir:     "frames",
		},
		Watch: WatchConfig{
			MaxFPS:      30,
			OpenBrowser: true,
		},
		Record: RecordConfig{
			Enabled: false,
			Path:    "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// StateDir returns the per-user state directory, ~/.repel.
func StateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".repel"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.repel/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	stateDir, err := StateDir()
	if err == nil {
		configPath := filepath.Join(stateDir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validBackends := map[string]bool{"threads": true, "grid": true}
	if !validBackends[c.Sim.Backend] {
		return fmt.Errorf("invalid backend: %s (valid: threads, grid)", c.Sim.Backend)
	}

	if c.Sim.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Sim.Workers)
	}
	if c.Sim.GridBlock < 0 {
		return fmt.Errorf("grid_block must be non-negative, got %d", c.Sim.GridBlock)
	}
	if c.Sim.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Sim.Epsilon)
	}
	if c.Sim.RelaxK <= 0 {
		return fmt.Errorf("relax_k must be positive, got %g", c.Sim.RelaxK)
	}

	if c.Init.MaxX <= c.Init.MinX {
		return fmt.Errorf("max_x must be greater than min_x, got [%g, %g]", c.Init.MinX, c.Init.MaxX)
	}
	if c.Init.MaxY <= c.Init.MinY {
		return fmt.Errorf("max_y must be greater than min_y, got [%g, %g]", c.Init.MinY, c.Init.MaxY)
	}
	if c.Init.MinRadius <= 0 {
		return fmt.Errorf("min_radius must be positive, got %g", c.Init.MinRadius)
	}
	if c.Init.MaxRadius < c.Init.MinRadius {
		return fmt.Errorf("max_radius must be at least min_radius, got [%g, %g]", c.Init.MinRadius, c.Init.MaxRadius)
	}

	if c.Watch.MaxFPS < 0 {
		return fmt.Errorf("max_fps must be non-negative, got %g", c.Watch.MaxFPS)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Bounds returns the seeding box as a sim.Bounds.
func (c *Config) Bounds() sim.Bounds {
	return sim.Bounds{
		MinX: c.Init.MinX,
		MaxX: c.Init.MaxX,
		MinY: c.Init.MinY,
		MaxY: c.Init.MaxY,
	}
}

// RadiusRange returns the radius interval as a sim.RadiusRange.
func (c *Config) RadiusRange() sim.RadiusRange {
	return sim.RadiusRange{
		Min: c.Init.MinRadius,
		Max: c.Init.MaxRadius,
	}
}

// Params returns the kernel constants as a sim.Params.
func (c *Config) Params() sim.Params {
	return sim.Params{
		Epsilon: c.Sim.Epsilon,
		RelaxK:  c.Sim.RelaxK,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("REPEL_BACKEND"); v != "" {
		config.Sim.Backend = v
	}

	if v := os.Getenv("REPEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sim.Workers = n
		}
	}

	if v := os.Getenv("REPEL_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Init.Seed = n
		}
	}

	if v := os.Getenv("REPEL_FRAMES_DIR"); v != "" {
		config.Frames.Dir = v
	}

	if v := os.Getenv("REPEL_RECORD_PATH"); v != "" {
		config.Record.Path = v
	}

	if v := os.Getenv("REPEL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
