// Package viz provides the visualization side channels: gnuplot frame
// scripts on disk and a live browser viewer over websockets. Both are
// observers of the simulation; neither feeds back into it.
package viz

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/repel/internal/pathutil"
	"github.com/nvandessel/repel/internal/sim"
)

// FrameWriter writes one gnuplot script per frame into a directory.
// Frame 0 is the initial state; frame i is the state after iteration i.
// Each script is self-contained: plot ranges, style, and the circle
// data as x y radius triples.
//
// FrameWriter is a pure side channel: a write failure is logged and
// disables further frames, it never stops the simulation.
type FrameWriter struct {
	dir      string
	bounds   sim.Bounds
	logger   *slog.Logger
	disabled bool
}

// NewFrameWriter creates the frame directory if needed. A nil logger
// uses slog.Default().
func NewFrameWriter(dir string, bounds sim.Bounds, logger *slog.Logger) (*FrameWriter, error) {
	if err := pathutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameWriter{dir: dir, bounds: bounds, logger: logger}, nil
}

// Path returns the script path for a frame index.
func (w *FrameWriter) Path(frame int) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%05d.gp", frame))
}

// OnFrame implements sim.Observer.
func (w *FrameWriter) OnFrame(frame int, s *sim.State) error {
	if w.disabled {
		return nil
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# frame %d, %d circles\n", frame, s.N)
	fmt.Fprintf(&buf, "set title 'Frame %d'\n", frame)
	buf.WriteString("set size square\n")
	fmt.Fprintf(&buf, "set xrange [%g:%g]\n", w.bounds.MinX, w.bounds.MaxX)
	fmt.Fprintf(&buf, "set yrange [%g:%g]\n", w.bounds.MinY, w.bounds.MaxY)
	buf.WriteString("set style fill transparent solid 0.35\n")
	buf.WriteString("unset key\n")
	buf.WriteString("plot '-' with circles\n")
	for i := 0; i < s.N; i++ {
		fmt.Fprintf(&buf, "%g %g %g\n", s.X[i], s.Y[i], s.R[i])
	}
	buf.WriteString("e\n")
	buf.WriteString("pause -1\n")

	path := w.Path(frame)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		w.logger.Warn("frame output disabled",
			"path", pathutil.RedactPath(path),
			"error", err)
		w.disabled = true
	}
	return nil
}

// OnIteration implements sim.Observer. Frame scripts carry no
// per-iteration stats.
func (w *FrameWriter) OnIteration(iter, overlaps int, elapsed time.Duration) error {
	return nil
}
