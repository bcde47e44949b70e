package sim

import (
	"fmt"
	"runtime"
	"testing"
)

func benchState(b *testing.B, n int) *State {
	b.Helper()
	st, err := NewState(n)
	if err != nil {
		b.Fatalf("NewState(%d): %v", n, err)
	}
	st.InitRandom(1, Bounds{MinX: 0, MaxX: 500, MinY: 0, MaxY: 500}, RadiusRange{Min: 2, Max: 8})
	return st
}

func BenchmarkComputeForces(b *testing.B) {
	for _, n := range []int{256, 1024} {
		st := benchState(b, n)
		backends := []Backend{
			NewThreads(st, DefaultParams(), 1),
			NewThreads(st, DefaultParams(), runtime.NumCPU()),
			NewGrid(st, DefaultParams(), 0),
		}
		for _, be := range backends {
			b.Run(fmt.Sprintf("%s/n=%d", be.Name(), n), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					be.Reset()
					if _, err := be.ComputeForces(); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkFullIteration(b *testing.B) {
	st := benchState(b, 512)
	be := NewThreads(st, DefaultParams(), runtime.NumCPU())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		be.Reset()
		if _, err := be.ComputeForces(); err != nil {
			b.Fatal(err)
		}
		be.Integrate()
	}
}
