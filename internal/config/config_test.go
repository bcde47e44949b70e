package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/repel/internal/sim"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Sim defaults
	if config.Sim.Backend != "threads" {
		t.Errorf("expected Backend 'threads', got '%s'", config.Sim.Backend)
	}
	if config.Sim.Workers != 0 {
		t.Errorf("expected Workers 0, got %d", config.Sim.Workers)
	}
	if config.Sim.Epsilon != sim.DefaultEpsilon {
		t.Errorf("expected Epsilon %g, got %g", sim.DefaultEpsilon, config.Sim.Epsilon)
	}
	if config.Sim.RelaxK != sim.DefaultRelaxK {
		t.Errorf("expected RelaxK %g, got %g", sim.DefaultRelaxK, config.Sim.RelaxK)
	}

	// Init defaults
	if config.Init.Seed != 1 {
		t.Errorf("expected Seed 1, got %d", config.Init.Seed)
	}
	if config.Init.MaxX != 1000 || config.Init.MaxY != 1000 {
		t.Errorf("expected 1000x1000 box, got %gx%g", config.Init.MaxX, config.Init.MaxY)
	}
	if config.Init.MinRadius != 1 || config.Init.MaxRadius != 10 {
		t.Errorf("expected radius range [1, 10], got [%g, %g]", config.Init.MinRadius, config.Init.MaxRadius)
	}

	// Side channel defaults
	if config.Frames.Enabled {
		t.Error("expected Frames.Enabled to be false by default")
	}
	if config.Frames.Dir != "frames" {
		t.Errorf("expected Frames.Dir 'frames', got '%s'", config.Frames.Dir)
	}
	if config.Watch.MaxFPS != 30 {
		t.Errorf("expected Watch.MaxFPS 30, got %g", config.Watch.MaxFPS)
	}
	if config.Record.Enabled {
		t.Error("expected Record.Enabled to be false by default")
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
sim:
  backend: grid
  workers: 4
  grid_block: 128
  epsilon: 1e-6
  relax_k: 2

init:
  seed: 99
  max_x: 500
  max_y: 250
  min_radius: 2
  max_radius: 4

frames:
  enabled: true
  dir: out/frames
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Sim.Backend != "grid" {
		t.Errorf("expected Backend 'grid', got '%s'", config.Sim.Backend)
	}
	if config.Sim.Workers != 4 {
		t.Errorf("expected Workers 4, got %d", config.Sim.Workers)
	}
	if config.Sim.GridBlock != 128 {
		t.Errorf("expected GridBlock 128, got %d", config.Sim.GridBlock)
	}
	if config.Sim.Epsilon != 1e-6 {
		t.Errorf("expected Epsilon 1e-6, got %g", config.Sim.Epsilon)
	}
	if config.Init.Seed != 99 {
		t.Errorf("expected Seed 99, got %d", config.Init.Seed)
	}
	if config.Init.MaxX != 500 || config.Init.MaxY != 250 {
		t.Errorf("expected 500x250 box, got %gx%g", config.Init.MaxX, config.Init.MaxY)
	}
	if !config.Frames.Enabled {
		t.Error("expected Frames.Enabled to be true")
	}
	if config.Frames.Dir != "out/frames" {
		t.Errorf("expected Frames.Dir 'out/frames', got '%s'", config.Frames.Dir)
	}

	// Unset sections keep their defaults
	if config.Watch.MaxFPS != 30 {
		t.Errorf("expected default Watch.MaxFPS 30, got %g", config.Watch.MaxFPS)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected default Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	// Save and restore env vars
	origBackend := os.Getenv("REPEL_BACKEND")
	origWorkers := os.Getenv("REPEL_WORKERS")
	origSeed := os.Getenv("REPEL_SEED")
	defer func() {
		os.Setenv("REPEL_BACKEND", origBackend)
		os.Setenv("REPEL_WORKERS", origWorkers)
		os.Setenv("REPEL_SEED", origSeed)
	}()

	// Set env vars
	os.Setenv("REPEL_BACKEND", "grid")
	os.Setenv("REPEL_WORKERS", "8")
	os.Setenv("REPEL_SEED", "1234")

	config := Default()
	applyEnvOverrides(config)

	if config.Sim.Backend != "grid" {
		t.Errorf("expected Backend 'grid', got '%s'", config.Sim.Backend)
	}
	if config.Sim.Workers != 8 {
		t.Errorf("expected Workers 8, got %d", config.Sim.Workers)
	}
	if config.Init.Seed != 1234 {
		t.Errorf("expected Seed 1234, got %d", config.Init.Seed)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	origLogLevel := os.Getenv("REPEL_LOG_LEVEL")
	defer os.Setenv("REPEL_LOG_LEVEL", origLogLevel)

	os.Setenv("REPEL_LOG_LEVEL", "debug")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	origWorkers := os.Getenv("REPEL_WORKERS")
	defer os.Setenv("REPEL_WORKERS", origWorkers)

	os.Setenv("REPEL_WORKERS", "not-a-number")

	config := Default()
	applyEnvOverrides(config)

	if config.Sim.Workers != 0 {
		t.Errorf("expected Workers to keep default 0, got %d", config.Sim.Workers)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidBackend(t *testing.T) {
	config := Default()
	config.Sim.Backend = "cuda"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid backend")
	}
}

func TestValidate_InvalidKernel(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero epsilon", func(c *Config) { c.Sim.Epsilon = 0 }},
		{"negative epsilon", func(c *Config) { c.Sim.Epsilon = -1e-9 }},
		{"zero relax_k", func(c *Config) { c.Sim.RelaxK = 0 }},
		{"negative workers", func(c *Config) { c.Sim.Workers = -1 }},
		{"negative grid_block", func(c *Config) { c.Sim.GridBlock = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_InvalidInit(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted x bounds", func(c *Config) { c.Init.MinX = 10; c.Init.MaxX = 10 }},
		{"inverted y bounds", func(c *Config) { c.Init.MinY = 5; c.Init.MaxY = 0 }},
		{"negative min radius", func(c *Config) { c.Init.MinRadius = -1 }},
		{"zero min radius", func(c *Config) { c.Init.MinRadius = 0 }},
		{"inverted radius range", func(c *Config) { c.Init.MinRadius = 5; c.Init.MaxRadius = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	config := Default()
	config.Logging.Level = "verbose"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestConversionHelpers(t *testing.T) {
	config := Default()
	config.Init.MinX, config.Init.MaxX = -10, 10
	config.Init.MinY, config.Init.MaxY = 0, 20
	config.Init.MinRadius, config.Init.MaxRadius = 2, 4
	config.Sim.Epsilon = 1e-6
	config.Sim.RelaxK = 8

	b := config.Bounds()
	if b.MinX != -10 || b.MaxX != 10 || b.MinY != 0 || b.MaxY != 20 {
		t.Errorf("Bounds() = %+v, want [-10, 10]x[0, 20]", b)
	}

	r := config.RadiusRange()
	if r.Min != 2 || r.Max != 4 {
		t.Errorf("RadiusRange() = %+v, want [2, 4]", r)
	}

	p := config.Params()
	if p.Epsilon != 1e-6 || p.RelaxK != 8 {
		t.Errorf("Params() = %+v, want {1e-6, 8}", p)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
sim:
  backend: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
