package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/repel/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage repel configuration",
		Long: `View and modify repel configuration settings.

Configuration is stored in ~/.repel/config.yaml.

Examples:
  repel config list                    # Show all settings
  repel config get sim.backend         # Get a specific setting
  repel config set sim.backend grid    # Set a setting
  repel config set init.seed 42`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.repel/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Simulation:")
			fmt.Fprintf(out, "  sim.backend:        %s\n", cfg.Sim.Backend)
			fmt.Fprintf(out, "  sim.workers:        %d\n", cfg.Sim.Workers)
			fmt.Fprintf(out, "  sim.grid_block:     %d\n", cfg.Sim.GridBlock)
			fmt.Fprintf(out, "  sim.epsilon:        %g\n", cfg.Sim.Epsilon)
			fmt.Fprintf(out, "  sim.relax_k:        %g\n", cfg.Sim.RelaxK)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Population:")
			fmt.Fprintf(out, "  init.seed:          %d\n", cfg.Init.Seed)
			fmt.Fprintf(out, "  init.min_x:         %g\n", cfg.Init.MinX)
			fmt.Fprintf(out, "  init.max_x:         %g\n", cfg.Init.MaxX)
			fmt.Fprintf(out, "  init.min_y:         %g\n", cfg.Init.MinY)
			fmt.Fprintf(out, "  init.max_y:         %g\n", cfg.Init.MaxY)
			fmt.Fprintf(out, "  init.min_radius:    %g\n", cfg.Init.MinRadius)
			fmt.Fprintf(out, "  init.max_radius:    %g\n", cfg.Init.MaxRadius)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Output:")
			fmt.Fprintf(out, "  frames.enabled:     %v\n", cfg.Frames.Enabled)
			fmt.Fprintf(out, "  frames.dir:         %s\n", cfg.Frames.Dir)
			fmt.Fprintf(out, "  watch.max_fps:      %g\n", cfg.Watch.MaxFPS)
			fmt.Fprintf(out, "  watch.open_browser: %v\n", cfg.Watch.OpenBrowser)
			fmt.Fprintf(out, "  record.enabled:     %v\n", cfg.Record.Enabled)
			fmt.Fprintf(out, "  record.path:        %s\n", valueOrDefault(cfg.Record.Path, "(default)"))
			fmt.Fprintf(out, "  logging.level:      %s\n", cfg.Logging.Level)

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"error": "key not found",
						"key":   key,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Unknown configuration key: %s\n", key)
				}
				return nil
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
				}
				return nil
			}

			if err := cfg.Validate(); err != nil {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
				}
				return nil
			}

			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			}

			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (any, bool) {
	switch key {
	case "sim.backend":
		return cfg.Sim.Backend, true
	case "sim.workers":
		return cfg.Sim.Workers, true
	case "sim.grid_block":
		return cfg.Sim.GridBlock, true
	case "sim.epsilon":
		return cfg.Sim.Epsilon, true
	case "sim.relax_k":
		return cfg.Sim.RelaxK, true
	case "init.seed":
		return cfg.Init.Seed, true
	case "init.min_x":
		return cfg.Init.MinX, true
	case "init.max_x":
		return cfg.Init.MaxX, true
	case "init.min_y":
		return cfg.Init.MinY, true
	case "init.max_y":
		return cfg.Init.MaxY, true
	case "init.min_radius":
		return cfg.Init.MinRadius, true
	case "init.max_radius":
		return cfg.Init.MaxRadius, true
	case "frames.enabled":
		return cfg.Frames.Enabled, true
	case "frames.dir":
		return cfg.Frames.Dir, true
	case "watch.max_fps":
		return cfg.Watch.MaxFPS, true
	case "watch.open_browser":
		return cfg.Watch.OpenBrowser, true
	case "record.enabled":
		return cfg.Record.Enabled, true
	case "record.path":
		return cfg.Record.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", value)
		}
		return f, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer: %s", value)
		}
		return n, nil
	}

	switch key {
	case "sim.backend":
		cfg.Sim.Backend = value
	case "sim.workers":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Sim.Workers = n
	case "sim.grid_block":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Sim.GridBlock = n
	case "sim.epsilon":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Sim.Epsilon = f
	case "sim.relax_k":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Sim.RelaxK = f
	case "init.seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		cfg.Init.Seed = n
	case "init.min_x":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MinX = f
	case "init.max_x":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MaxX = f
	case "init.min_y":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MinY = f
	case "init.max_y":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MaxY = f
	case "init.min_radius":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MinRadius = f
	case "init.max_radius":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Init.MaxRadius = f
	case "frames.enabled":
		cfg.Frames.Enabled = value == "true" || value == "1"
	case "frames.dir":
		cfg.Frames.Dir = value
	case "watch.max_fps":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Watch.MaxFPS = f
	case "watch.open_browser":
		cfg.Watch.OpenBrowser = value == "true" || value == "1"
	case "record.enabled":
		cfg.Record.Enabled = value == "true" || value == "1"
	case "record.path":
		cfg.Record.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// saveConfig writes the configuration to ~/.repel/config.yaml.
func saveConfig(cfg *config.Config) error {
	stateDir, err := config.StateDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	configPath := filepath.Join(stateDir, "config.yaml")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
