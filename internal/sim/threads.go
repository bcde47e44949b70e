package sim

import (
	"fmt"
	"runtime"
	"sync"
)

// Threads runs the pair kernel on a fixed pool of goroutines over
// shared memory. Circle rows are split into contiguous chunks; each
// worker accumulates into private partial displacement buffers and a
// private overlap subtotal, and the partials are merged sequentially
// after the join barrier. This keeps the hot loop free of atomics at
// the cost of one extra pass over the buffers.
//
// A pool of one worker skips the partial buffers entirely and is the
// sequential reference path.
type Threads struct {
	st      *State
	p       Params
	workers int

	// Per-worker accumulation state, allocated once up front.
	partDX [][]float64
	partDY [][]float64
	counts []int
	errs   []error
}

// NewThreads creates the shared-memory backend. workers <= 0 selects
// runtime.NumCPU().
func NewThreads(st *State, p Params, workers int) *Threads {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	t := &Threads{
		st:      st,
		p:       p,
		workers: workers,
		counts:  make([]int, workers),
		errs:    make([]error, workers),
	}
	if workers > 1 {
		t.partDX = make([][]float64, workers)
		t.partDY = make([][]float64, workers)
		for w := 0; w < workers; w++ {
			t.partDX[w] = make([]float64, st.N)
			t.partDY[w] = make([]float64, st.N)
		}
	}
	return t
}

// Name implements Backend.
func (t *Threads) Name() string {
	return fmt.Sprintf("threads(%d)", t.workers)
}

// Workers returns the pool size.
func (t *Threads) Workers() int {
	return t.workers
}

// Reset implements Backend.
func (t *Threads) Reset() {
	clear(t.st.DX)
	clear(t.st.DY)
}

// ComputeForces implements Backend.
func (t *Threads) ComputeForces() (int, error) {
	n := t.st.N
	if n < 2 {
		return 0, nil
	}
	if t.workers == 1 {
		return t.computeSerial()
	}
	return t.computeParallel()
}

// computeSerial walks the full pair triangle on the caller's goroutine,
// accumulating straight into the shared buffers.
func (t *Threads) computeSerial() (int, error) {
	st := t.st
	eps := t.p.Epsilon
	invK := 1 / t.p.RelaxK

	count := 0
	for i := 0; i < st.N; i++ {
		xi, yi, ri := st.X[i], st.Y[i], st.R[i]
		for j := i + 1; j < st.N; j++ {
			dx := st.X[j] - xi
			dy := st.Y[j] - yi
			s, ov, ok := overlapStep(dx, dy, ri+st.R[j], eps)
			if !ok {
				continue
			}
			if ov <= 0 {
				return 0, fmt.Errorf("circle pair (%d,%d): non-positive overlap depth %g", i, j, ov)
			}
			cx := s * dx * invK
			cy := s * dy * invK
			st.DX[i] -= cx
			st.DY[i] -= cy
			st.DX[j] += cx
			st.DY[j] += cy
			count++
		}
	}
	return count, nil
}

// computeParallel forks the worker pool over contiguous row chunks and
// reduces the per-worker partials after the join.
func (t *Threads) computeParallel() (int, error) {
	st := t.st
	n := st.N
	chunkSize := (n + t.workers - 1) / t.workers

	var wg sync.WaitGroup
	for w := 0; w < t.workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			t.counts[w] = 0
			t.errs[w] = nil
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			t.counts[w], t.errs[w] = t.runRows(w, start, end)
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range t.errs {
		if err != nil {
			return 0, err
		}
	}

	// Sequential reduction into the shared buffers, clearing each
	// partial for the next pass as it is consumed.
	count := 0
	for w := 0; w < t.workers; w++ {
		count += t.counts[w]
		pdx, pdy := t.partDX[w], t.partDY[w]
		for i := 0; i < n; i++ {
			st.DX[i] += pdx[i]
			st.DY[i] += pdy[i]
		}
		clear(pdx)
		clear(pdy)
	}
	return count, nil
}

// runRows evaluates all pairs whose leading index falls in [start, end),
// writing both endpoints of each pair into worker w's private buffers.
func (t *Threads) runRows(w, start, end int) (int, error) {
	st := t.st
	eps := t.p.Epsilon
	invK := 1 / t.p.RelaxK
	pdx, pdy := t.partDX[w], t.partDY[w]

	count := 0
	for i := start; i < end; i++ {
		xi, yi, ri := st.X[i], st.Y[i], st.R[i]
		for j := i + 1; j < st.N; j++ {
			dx := st.X[j] - xi
			dy := st.Y[j] - yi
			s, ov, ok := overlapStep(dx, dy, ri+st.R[j], eps)
			if !ok {
				continue
			}
			if ov <= 0 {
				return 0, fmt.Errorf("circle pair (%d,%d): non-positive overlap depth %g", i, j, ov)
			}
			cx := s * dx * invK
			cy := s * dy * invK
			pdx[i] -= cx
			pdy[i] -= cy
			pdx[j] += cx
			pdy[j] += cy
			count++
		}
	}
	return count, nil
}

// Integrate implements Backend.
func (t *Threads) Integrate() {
	st := t.st
	for i := 0; i < st.N; i++ {
		st.X[i] += st.DX[i]
		st.Y[i] += st.DY[i]
		st.DX[i] = 0
		st.DY[i] = 0
	}
}
