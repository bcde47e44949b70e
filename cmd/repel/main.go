package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/repel/internal/config"
	"github.com/nvandessel/repel/internal/logging"
	"github.com/nvandessel/repel/internal/record"
	"github.com/nvandessel/repel/internal/sim"
	"github.com/nvandessel/repel/internal/viz"
)

var version = "0.1.0-dev"

const (
	defaultCircles    = 10000
	defaultIterations = 20
)

func main() {
	rootCmd := newRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repel [ncircles [iterations]]",
		Short: "Relax overlapping circles by mutual repulsion",
		Long: `repel seeds a population of circles into a box and runs a fixed
number of relaxation iterations. Each iteration pushes every
overlapping pair apart by a damped fraction of its overlap depth
and reports the pair count.

With no arguments it relaxes 10000 circles for 20 iterations.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runRoot,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.repel/config.yaml)")

	rootCmd.Flags().String("backend", "", "Execution backend: threads or grid")
	rootCmd.Flags().Int("workers", 0, "Worker count for the threads backend (0 = all CPUs)")
	rootCmd.Flags().Int("block", 0, "Block size for the grid backend (0 = default)")
	rootCmd.Flags().Int64("seed", 0, "Population seed")
	rootCmd.Flags().String("log-level", "", "Log level: info, debug, or trace")
	rootCmd.Flags().String("frames", "", "Write a gnuplot script per frame into this directory")
	rootCmd.Flags().String("record", "", "Record the run to this history database")
	rootCmd.Flags().Bool("watch", false, "Serve a live browser viewer during the run")
	rootCmd.Flags().Bool("no-open", false, "Don't open the browser in watch mode")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newBenchCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ncircles, iterations, err := parseCounts(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	st, err := sim.NewState(ncircles)
	if err != nil {
		return err
	}
	st.InitRandom(cfg.Init.Seed, cfg.Bounds(), cfg.RadiusRange())

	kind, err := sim.ParseKind(cfg.Sim.Backend)
	if err != nil {
		return err
	}
	backend, err := sim.NewBackend(kind, st, cfg.Params(), sim.Options{
		Workers:   cfg.Sim.Workers,
		GridBlock: cfg.Sim.GridBlock,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	var observers []sim.Observer

	// Iteration tracing at debug level and above.
	if stateDir, dirErr := config.StateDir(); dirErr == nil {
		tl := logging.NewTraceLogger(stateDir, cfg.Logging.Level)
		defer tl.Close()
		observers = append(observers, &traceObserver{tl: tl, backend: backend.Name()})
	}

	if cfg.Frames.Enabled {
		fw, err := viz.NewFrameWriter(cfg.Frames.Dir, cfg.Bounds(), logger)
		if err != nil {
			return err
		}
		observers = append(observers, fw)
	}

	var rec *record.Recorder
	var runID string
	if cfg.Record.Enabled {
		path, err := recordPath(cfg)
		if err != nil {
			return err
		}
		rec, err = record.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer rec.Close()

		runID, err = rec.BeginRun(ctx, record.RunInfo{
			Circles:    ncircles,
			Iterations: iterations,
			Backend:    backend.Name(),
			Seed:       cfg.Init.Seed,
		})
		if err != nil {
			return fmt.Errorf("failed to begin run: %w", err)
		}
		observers = append(observers, rec.Observer(ctx, runID))
	}

	var watch *watchSession
	if watchFlag, _ := cmd.Flags().GetBool("watch"); watchFlag {
		noOpen, _ := cmd.Flags().GetBool("no-open")
		watch, err = startWatch(cmd, cfg, noOpen)
		if err != nil {
			return err
		}
		defer watch.stop()
		observers = append(observers, watch.srv)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	if jsonOut {
		// The JSON summary replaces the per-iteration report.
		out = io.Discard
	}

	driver := sim.NewDriver(backend, st, sim.DriverConfig{
		Iterations: iterations,
		Out:        out,
		Logger:     logger,
		Observers:  observers,
	})

	summary, err := driver.Run()
	if err != nil {
		return err
	}

	if rec != nil {
		if err := rec.FinishRun(ctx, runID, summary.TotalOverlaps, summary.Elapsed); err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}

	if jsonOut {
		json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"circles":        ncircles,
			"iterations":     summary.Iterations,
			"backend":        backend.Name(),
			"seed":           cfg.Init.Seed,
			"total_overlaps": summary.TotalOverlaps,
			"elapsed":        summary.Elapsed.Seconds(),
		})
	}

	if watch != nil {
		watch.srv.Flush()
		watch.wait(cmd)
	}

	return nil
}

// parseCounts resolves the two optional positional arguments.
func parseCounts(args []string) (ncircles, iterations int, err error) {
	ncircles = defaultCircles
	iterations = defaultIterations

	if len(args) >= 1 {
		ncircles, err = strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid circle count %q", args[0])
		}
		if ncircles < 0 {
			return 0, 0, fmt.Errorf("circle count must be non-negative, got %d", ncircles)
		}
	}
	if len(args) >= 2 {
		iterations, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid iteration count %q", args[1])
		}
		if iterations < 0 {
			return 0, 0, fmt.Errorf("iteration count must be non-negative, got %d", iterations)
		}
	}
	return ncircles, iterations, nil
}

// loadConfig loads from --config if set, otherwise the default chain.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// applyRunFlags overlays explicitly set run flags onto the config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("backend") {
		cfg.Sim.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Sim.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("block") {
		cfg.Sim.GridBlock, _ = cmd.Flags().GetInt("block")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Init.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("frames") {
		cfg.Frames.Enabled = true
		if dir, _ := cmd.Flags().GetString("frames"); dir != "" {
			cfg.Frames.Dir = dir
		}
	}
	if cmd.Flags().Changed("record") {
		cfg.Record.Enabled = true
		if path, _ := cmd.Flags().GetString("record"); path != "" {
			cfg.Record.Path = path
		}
	}
}

// recordPath resolves the history database path.
func recordPath(cfg *config.Config) (string, error) {
	if cfg.Record.Path != "" {
		return cfg.Record.Path, nil
	}
	stateDir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "runs.db"), nil
}

// traceObserver mirrors driver progress into the JSONL trace file.
// TraceLogger is nil-safe, so this observer costs nothing at info level.
type traceObserver struct {
	tl      *logging.TraceLogger
	backend string
}

func (o *traceObserver) OnFrame(frame int, s *sim.State) error {
	o.tl.Log(map[string]any{
		"event":   "frame",
		"frame":   frame,
		"circles": s.N,
	})
	return nil
}

func (o *traceObserver) OnIteration(iter, overlaps int, elapsed time.Duration) error {
	o.tl.Log(map[string]any{
		"event":     "iteration",
		"backend":   o.backend,
		"iteration": iter,
		"overlaps":  overlaps,
		"seconds":   elapsed.Seconds(),
	})
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "repel version %s\n", version)
			}
		},
	}
}
