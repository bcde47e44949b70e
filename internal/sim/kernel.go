package sim

import "math"

// Default kernel constants. Both are configurable; see Params.
const (
	// DefaultEpsilon pads the overlap test and stabilizes the
	// correction denominator for near-coincident centers.
	DefaultEpsilon = 1e-9

	// DefaultRelaxK divides each correction to damp the relaxation
	// step. Larger values converge slower but ring less.
	DefaultRelaxK = 4.0
)

// Params holds the numerical constants of the overlap kernel.
type Params struct {
	// Epsilon is the overlap detection slack and denominator
	// stabilizer. Must be positive.
	Epsilon float64

	// RelaxK is the correction divisor. Must be positive.
	RelaxK float64
}

// DefaultParams returns the default kernel constants.
func DefaultParams() Params {
	return Params{Epsilon: DefaultEpsilon, RelaxK: DefaultRelaxK}
}

// overlapStep evaluates one unordered circle pair. dx, dy is the vector
// from center i to center j, rsum the sum of the two radii. ok reports
// whether the pair overlaps (dist < rsum - eps; the exact boundary is
// not an overlap). On overlap, ov is the positive overlap depth and
// scale the shared correction factor: circle i receives
// (-scale*dx, -scale*dy)/K and circle j the exact opposite.
//
// All backends route their pair math through here so that detection and
// correction cannot drift apart between execution strategies.
func overlapStep(dx, dy, rsum, eps float64) (scale, ov float64, ok bool) {
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist >= rsum-eps {
		return 0, 0, false
	}
	ov = rsum - dist
	return ov / (dist + eps), ov, true
}
