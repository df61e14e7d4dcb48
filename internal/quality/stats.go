package quality

import (
	"math"
	"sort"
)

// SummaryStats is the five-number descriptive summary used in tracker
// queries.
type SummaryStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Stdev  float64 `json:"stdev"`
}

func summarize(xs []float64) SummaryStats {
	if len(xs) == 0 {
		return SummaryStats{}
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	var sum float64
	for _, x := range sorted {
		sum += x
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, x := range sorted {
		d := x - mean
		sq += d * d
	}
	var stdev float64
	if len(sorted) > 1 {
		stdev = math.Sqrt(sq / float64(len(sorted)-1))
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return SummaryStats{
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Stdev:  stdev,
	}
}
