package sim

import "fmt"

// Backend is the compute contract shared by all execution strategies.
// One relaxation iteration is Reset, ComputeForces, Integrate, in that
// order. Implementations guarantee a full barrier between the force
// pass and integration: Integrate never observes in-flight accumulation.
type Backend interface {
	// Name identifies the backend in reports and logs.
	Name() string

	// Reset zeroes all pending displacement accumulators.
	Reset()

	// ComputeForces evaluates every unordered circle pair exactly once,
	// accumulating displacement corrections and counting overlapping
	// pairs. It returns the overlap count for the pass. A detected
	// overlap with non-positive depth is a fatal invariant violation
	// and surfaces as an error.
	ComputeForces() (int, error)

	// Integrate applies pending displacements to positions and clears
	// them, leaving the accumulators zero.
	Integrate()
}

// Kind selects a backend implementation.
type Kind string

const (
	// KindThreads is the shared-memory worker pool backend.
	KindThreads Kind = "threads"

	// KindGrid is the device-style grid backend with atomic
	// accumulation and staged buffers.
	KindGrid Kind = "grid"
)

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindThreads, KindGrid:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown backend: %q (valid: threads, grid)", s)
	}
}

// Options carries per-backend tuning knobs.
type Options struct {
	// Workers is the threads backend pool size. 0 means runtime.NumCPU.
	Workers int

	// GridBlock is the grid backend work items per block. 0 means
	// DefaultGridBlock.
	GridBlock int
}

// NewBackend constructs the backend selected by k over the given state.
func NewBackend(k Kind, st *State, p Params, opt Options) (Backend, error) {
	switch k {
	case KindThreads:
		return NewThreads(st, p, opt.Workers), nil
	case KindGrid:
		return NewGrid(st, p, opt.GridBlock), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", k)
	}
}
