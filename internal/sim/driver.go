package sim

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Observer receives simulation progress on the side, outside the
// stdout report stream. Frame 0 carries the initial state before any
// force pass; frame i carries the state after iteration i. Returning a
// non-nil error aborts the run, so observers that should never stop
// the simulation must swallow their own failures.
type Observer interface {
	OnFrame(frame int, s *State) error
	OnIteration(iter, overlaps int, elapsed time.Duration) error
}

// DriverConfig carries the knobs for a simulation run. Zero values
// select the defaults noted on each field.
type DriverConfig struct {
	// Iterations is the fixed number of relaxation passes. The driver
	// always runs exactly this many; there is no convergence check.
	Iterations int

	// Out receives the per-iteration report lines and the final
	// elapsed line. Defaults to os.Stdout.
	Out io.Writer

	// Logger receives debug-level progress. Defaults to slog.Default().
	Logger *slog.Logger

	// Observers are notified of every frame and iteration in order.
	Observers []Observer
}

// Summary describes a completed run.
type Summary struct {
	Iterations    int
	TotalOverlaps int64
	Elapsed       time.Duration
}

// Driver owns the iteration loop: reset, force pass, integrate,
// report. Phases never overlap across the backend; each one finishes
// for the whole population before the next starts.
type Driver struct {
	b     Backend
	st    *State
	iters int
	out   io.Writer
	log   *slog.Logger
	obs   []Observer
}

// NewDriver binds a backend and its state to a run configuration.
func NewDriver(b Backend, st *State, cfg DriverConfig) *Driver {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		b:     b,
		st:    st,
		iters: cfg.Iterations,
		out:   out,
		log:   log,
		obs:   cfg.Observers,
	}
}

// Run executes the configured number of iterations and reports one
// line per iteration plus a final elapsed line. With zero iterations
// the state is untouched and only the elapsed line is written.
func (d *Driver) Run() (Summary, error) {
	start := time.Now()

	d.log.Debug("simulation starting",
		"backend", d.b.Name(),
		"circles", d.st.N,
		"iterations", d.iters)

	if err := d.emitFrame(0); err != nil {
		return Summary{}, err
	}

	var total int64
	for it := 0; it < d.iters; it++ {
		iterStart := time.Now()

		d.b.Reset()
		overlaps, err := d.b.ComputeForces()
		if err != nil {
			return Summary{}, fmt.Errorf("iteration %d: %w", it+1, err)
		}
		d.b.Integrate()

		dur := time.Since(iterStart)
		total += int64(overlaps)

		fmt.Fprintf(d.out, "Iteration %d of %d, %d overlaps (%.6f s)\n",
			it+1, d.iters, overlaps, dur.Seconds())
		d.log.Debug("iteration complete",
			"iteration", it+1,
			"overlaps", overlaps,
			"elapsed", dur)

		for _, o := range d.obs {
			if err := o.OnIteration(it+1, overlaps, dur); err != nil {
				return Summary{}, fmt.Errorf("iteration %d: %w", it+1, err)
			}
		}
		if err := d.emitFrame(it + 1); err != nil {
			return Summary{}, fmt.Errorf("iteration %d: %w", it+1, err)
		}
	}

	elapsed := time.Since(start)
	fmt.Fprintf(d.out, "Elapsed time: %.6f\n", elapsed.Seconds())

	return Summary{
		Iterations:    d.iters,
		TotalOverlaps: total,
		Elapsed:       elapsed,
	}, nil
}

func (d *Driver) emitFrame(frame int) error {
	for _, o := range d.obs {
		if err := o.OnFrame(frame, d.st); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	return nil
}
