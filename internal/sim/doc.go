// Package sim implements a fixed-iteration relaxation of mutually
// repelling circles in a 2D box.
//
// Each iteration evaluates every unordered circle pair exactly once:
// pairs whose center distance falls below the sum of their radii count
// as an overlap and accumulate equal-and-opposite displacement
// corrections. A separate integration pass then applies the accumulated
// displacements and clears them, so the next pass always starts from a
// clean accumulator. The loop runs an exact number of iterations with
// no early termination.
//
// Two backends execute the pair kernel behind one contract:
//
//   - Threads partitions circle rows across a worker pool, with
//     per-worker partial displacement buffers merged after a join
//     barrier. A single worker degenerates to the sequential reference
//     path.
//   - Grid mimics a massively parallel device: positions are staged
//     into separate buffers, work is issued as a logical grid of
//     fixed-size blocks, and every accumulator write goes through an
//     atomic compare-and-swap.
//
// Overlap counts are exactly equal across backends for identical input
// positions; final positions agree within floating-point reassociation
// tolerance.
//
// Usage:
//
//	st, _ := sim.NewState(10000)
//	st.InitRandom(1, sim.DefaultBounds(), sim.DefaultRadiusRange())
//	backend := sim.NewThreads(st, sim.DefaultParams(), 0)
//	driver := sim.NewDriver(backend, st, sim.DriverConfig{Iterations: 20})
//	summary, err := driver.Run()
package sim
