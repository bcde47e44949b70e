package sim

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// DefaultGridBlock is the default number of work items per grid block.
const DefaultGridBlock = 256

// Grid mimics a massively parallel device. Circle state lives in
// device-side buffers separate from the host State: positions are
// staged in before every force pass and staged out after integration,
// while the displacement accumulators stay device-resident across
// iterations. Work is issued as a logical one-dimensional grid of
// fixed-size blocks with one work item per leading circle index.
//
// A work item writes to both endpoints of each overlapping pair, so
// every accumulator write goes through an atomic compare-and-swap on
// the float64 bit pattern; the overlap counter folds block subtotals
// into an atomic integer.
type Grid struct {
	st     *State
	p      Params
	block  int
	blocks int

	devX, devY, devR []float64
	devDX, devDY     []atomic.Uint64

	overlaps atomic.Int64
	errs     []error
}

// NewGrid creates the device-style backend. block <= 0 selects
// DefaultGridBlock. Radii are staged once here; they never change.
func NewGrid(st *State, p Params, block int) *Grid {
	if block <= 0 {
		block = DefaultGridBlock
	}
	blocks := 0
	if st.N > 0 {
		blocks = (st.N + block - 1) / block
	}
	g := &Grid{
		st:     st,
		p:      p,
		block:  block,
		blocks: blocks,
		devX:   make([]float64, st.N),
		devY:   make([]float64, st.N),
		devR:   make([]float64, st.N),
		devDX:  make([]atomic.Uint64, st.N),
		devDY:  make([]atomic.Uint64, st.N),
		errs:   make([]error, blocks),
	}
	copy(g.devR, st.R)
	return g
}

// Name implements Backend.
func (g *Grid) Name() string {
	return fmt.Sprintf("grid(%d)", g.block)
}

// Blocks returns the grid dimension for the current problem size.
func (g *Grid) Blocks() int {
	return g.blocks
}

// Reset implements Backend. It zeroes the device-resident accumulators.
func (g *Grid) Reset() {
	for i := range g.devDX {
		g.devDX[i].Store(0)
		g.devDY[i].Store(0)
	}
}

// ComputeForces implements Backend. It stages host positions into the
// device buffers, launches every block, and joins before returning.
func (g *Grid) ComputeForces() (int, error) {
	n := g.st.N

	// Stage in before the pair check: Integrate writes the device
	// buffers back unconditionally, so they must hold the current
	// positions even when no pairs exist. Radii were staged at
	// construction.
	copy(g.devX, g.st.X)
	copy(g.devY, g.st.Y)

	if n < 2 {
		return 0, nil
	}

	g.overlaps.Store(0)
	clear(g.errs)

	var wg sync.WaitGroup
	for b := 0; b < g.blocks; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			g.runBlock(b)
		}(b)
	}
	wg.Wait()

	for _, err := range g.errs {
		if err != nil {
			return 0, err
		}
	}
	return int(g.overlaps.Load()), nil
}

// runBlock executes the work items of block b. Each work item owns one
// leading circle index and walks its trailing pairs.
func (g *Grid) runBlock(b int) {
	n := g.st.N
	eps := g.p.Epsilon
	invK := 1 / g.p.RelaxK

	lo := b * g.block
	hi := lo + g.block
	if hi > n {
		hi = n
	}

	count := int64(0)
	for i := lo; i < hi; i++ {
		xi, yi, ri := g.devX[i], g.devY[i], g.devR[i]
		for j := i + 1; j < n; j++ {
			dx := g.devX[j] - xi
			dy := g.devY[j] - yi
			s, ov, ok := overlapStep(dx, dy, ri+g.devR[j], eps)
			if !ok {
				continue
			}
			if ov <= 0 {
				g.errs[b] = fmt.Errorf("circle pair (%d,%d): non-positive overlap depth %g", i, j, ov)
				return
			}
			cx := s * dx * invK
			cy := s * dy * invK
			atomicAddFloat(&g.devDX[i], -cx)
			atomicAddFloat(&g.devDY[i], -cy)
			atomicAddFloat(&g.devDX[j], cx)
			atomicAddFloat(&g.devDY[j], cy)
			count++
		}
	}
	g.overlaps.Add(count)
}

// Integrate implements Backend. Displacements are applied on the device
// buffers, the accumulators cleared, and positions staged back out to
// the host state.
func (g *Grid) Integrate() {
	for i := 0; i < g.st.N; i++ {
		g.devX[i] += math.Float64frombits(g.devDX[i].Load())
		g.devY[i] += math.Float64frombits(g.devDY[i].Load())
		g.devDX[i].Store(0)
		g.devDY[i].Store(0)
	}
	copy(g.st.X, g.devX)
	copy(g.st.Y, g.devY)
}

// atomicAddFloat accumulates delta into the float64 bit pattern held by
// a, retrying until the compare-and-swap lands.
func atomicAddFloat(a *atomic.Uint64, delta float64) {
	for {
		old := a.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.CompareAndSwap(old, next) {
			return
		}
	}
}
