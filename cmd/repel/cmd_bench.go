package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/repel/internal/config"
	"github.com/nvandessel/repel/internal/sim"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench [ncircles [iterations]]",
		Short: "Compare backend timings",
		Long: `Run the same relaxation on every backend configuration and report
wall-clock timings side by side. Every configuration starts from a
clone of the same initial population, seeded and bounded by the loaded
configuration, so overlap counts must agree.

Example:
  repel bench 2000 10`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ncircles, iterations, err := parseCounts(args)
			if err != nil {
				return err
			}
			if iterations < 1 {
				return fmt.Errorf("bench needs at least one iteration, got %d", iterations)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Init.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")

			results, err := runBench(cfg, ncircles, iterations)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Benchmarking %d circles, %d iterations (seed %d)\n\n", ncircles, iterations, cfg.Init.Seed)
			fmt.Fprintf(out, "%-16s %-12s %-14s %s\n", "BACKEND", "OVERLAPS", "ELAPSED", "SPEEDUP")
			for _, r := range results {
				fmt.Fprintf(out, "%-16s %-12d %-14s %.2fx\n",
					r.Backend, r.TotalOverlaps, fmt.Sprintf("%.6f s", r.Elapsed), r.Speedup)
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", 1, "Population seed (overrides config)")

	return cmd
}

// benchResult is one backend's timing for the shared population.
type benchResult struct {
	Circles       int     `json:"circles"`
	Backend       string  `json:"backend"`
	TotalOverlaps int64   `json:"total_overlaps"`
	Elapsed       float64 `json:"elapsed"`
	Speedup       float64 `json:"speedup"`
}

// runBench times every backend configuration against clones of one
// population seeded from cfg. Kernel constants and the grid block size
// come from cfg too, so benchmarks reflect the same tuning as a real
// run. Speedup is relative to the first configuration, the
// single-worker reference.
func runBench(cfg *config.Config, ncircles, iterations int) ([]benchResult, error) {
	base, err := sim.NewState(ncircles)
	if err != nil {
		return nil, err
	}
	base.InitRandom(cfg.Init.Seed, cfg.Bounds(), cfg.RadiusRange())

	type setup struct {
		kind sim.Kind
		opt  sim.Options
	}
	setups := []setup{
		{sim.KindThreads, sim.Options{Workers: 1}},
		{sim.KindThreads, sim.Options{Workers: runtime.NumCPU()}},
		{sim.KindGrid, sim.Options{GridBlock: cfg.Sim.GridBlock}},
	}

	var results []benchResult
	var baseline time.Duration
	for _, su := range setups {
		st := base.Clone()
		backend, err := sim.NewBackend(su.kind, st, cfg.Params(), su.opt)
		if err != nil {
			return nil, err
		}

		driver := sim.NewDriver(backend, st, sim.DriverConfig{
			Iterations: iterations,
			Out:        io.Discard,
		})
		summary, err := driver.Run()
		if err != nil {
			return nil, fmt.Errorf("bench %s: %w", backend.Name(), err)
		}

		if len(results) == 0 {
			baseline = summary.Elapsed
		}
		speedup := 0.0
		if summary.Elapsed > 0 {
			speedup = baseline.Seconds() / summary.Elapsed.Seconds()
		}

		results = append(results, benchResult{
			Circles:       ncircles,
			Backend:       backend.Name(),
			TotalOverlaps: summary.TotalOverlaps,
			Elapsed:       summary.Elapsed.Seconds(),
			Speedup:       speedup,
		})
	}
	return results, nil
}
