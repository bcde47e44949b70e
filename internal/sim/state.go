package sim

import (
	"fmt"
	"math/rand"
)

// State holds the full circle population as a structure of arrays.
// X, Y are center coordinates, R the radii, and DX, DY the pending
// displacement accumulators. The accumulators are transient: zero at
// the start of every force pass and zeroed again by integration.
//
// The buffer is owned by its creator and handed to a backend; it is
// never package-global state.
type State struct {
	N  int
	X  []float64
	Y  []float64
	R  []float64
	DX []float64
	DY []float64
}

// Bounds is the axis-aligned box circle centers are seeded into.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// RadiusRange is the closed interval radii are drawn from.
type RadiusRange struct {
	Min, Max float64
}

// DefaultBounds returns the default seeding box.
func DefaultBounds() Bounds {
	return Bounds{MinX: 0, MaxX: 1000, MinY: 0, MaxY: 1000}
}

// DefaultRadiusRange returns the default radius interval.
func DefaultRadiusRange() RadiusRange {
	return RadiusRange{Min: 1, Max: 10}
}

// NewState allocates state for n circles with all fields zeroed.
func NewState(n int) (*State, error) {
	if n < 0 {
		return nil, fmt.Errorf("circle count must be non-negative, got %d", n)
	}
	return &State{
		N:  n,
		X:  make([]float64, n),
		Y:  make([]float64, n),
		R:  make([]float64, n),
		DX: make([]float64, n),
		DY: make([]float64, n),
	}, nil
}

// InitRandom seeds every circle from a sequential pseudo-random stream.
// Positions are uniform inside b, radii uniform inside r. The same seed
// and count always produce identical arrays, regardless of backend or
// worker count. Pending displacements are reset to zero.
func (s *State) InitRandom(seed int64, b Bounds, r RadiusRange) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < s.N; i++ {
		s.X[i] = b.MinX + rng.Float64()*(b.MaxX-b.MinX)
		s.Y[i] = b.MinY + rng.Float64()*(b.MaxY-b.MinY)
		s.R[i] = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	clear(s.DX)
	clear(s.DY)
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		N:  s.N,
		X:  make([]float64, s.N),
		Y:  make([]float64, s.N),
		R:  make([]float64, s.N),
		DX: make([]float64, s.N),
		DY: make([]float64, s.N),
	}
	copy(c.X, s.X)
	copy(c.Y, s.Y)
	copy(c.R, s.R)
	copy(c.DX, s.DX)
	copy(c.DY, s.DY)
	return c
}

// MaxPairs returns the number of unordered circle pairs, n(n-1)/2.
// The per-iteration overlap count can never exceed it.
func (s *State) MaxPairs() int {
	return s.N * (s.N - 1) / 2
}
