package confluence

import (
	"fmt"
	"math"
)

// WeightTolerance is the accepted deviation of a weight sum from 1.0.
const WeightTolerance = 1e-6

// WeightSet maps indicator name to its combination weight. Owned by
// configuration and read-only at evaluation time.
type WeightSet map[string]float64

// Validate rejects weight sets that are empty, carry negative or
// non-finite weights, or do not sum to 1.0 within tolerance.
func (w WeightSet) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("weight set is empty")
	}
	var sum float64
	for name, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %q is not finite", name)
		}
		if v < 0 {
			return fmt.Errorf("weight %q is negative: %f", name, v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("weights sum to %f, expected 1.0", sum)
	}
	return nil
}

// Renormalize returns the weights restricted to the given indicator names,
// rescaled to sum to 1.0. Returns false when the remaining weight mass is
// zero and no meaningful combination exists.
func (w WeightSet) Renormalize(names []string) (WeightSet, bool) {
	var sum float64
	for _, name := range names {
		sum += w[name]
	}
	if sum < WeightTolerance {
		return nil, false
	}
	out := make(WeightSet, len(names))
	for _, name := range names {
		out[name] = w[name] / sum
	}
	return out, true
}

// Equal returns an equal-weight set over the given names. Test helper and
// fallback for deployments without tuned weights.
func Equal(names []string) WeightSet {
	if len(names) == 0 {
		return WeightSet{}
	}
	w := make(WeightSet, len(names))
	for _, name := range names {
		w[name] = 1.0 / float64(len(names))
	}
	return w
}
