package normalize

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

func newTestNormalizer(lookback int, minSamples uint64) *Normalizer {
	return New(Config{Lookback: lookback, MinSamples: minSamples, WinsorBound: 3.0}, logger.Nop())
}

func TestNormalizeBeforeReadyReturnsZero(t *testing.T) {
	n := newTestNormalizer(50, 20)
	for i := 0; i < 19; i++ {
		n.Update(float64(i))
	}
	assert.False(t, n.IsReady())
	assert.Equal(t, 0.0, n.Normalize(100))
}

func TestNormalizeAtExactlyMinSamples(t *testing.T) {
	n := newTestNormalizer(50, 20)
	for i := 0; i < 20; i++ {
		n.Update(float64(i))
	}
	require.True(t, n.IsReady())
	z := n.Normalize(9.5) // mean of 0..19
	assert.InDelta(t, 0, z, 1e-9)
	assert.Greater(t, n.Normalize(19.0), 1.0)
}

func TestZeroVarianceWindowReturnsZero(t *testing.T) {
	n := newTestNormalizer(50, 5)
	for i := 0; i < 30; i++ {
		n.Update(42.0)
	}
	assert.Equal(t, 0.0, n.Normalize(42.0))
	assert.Equal(t, 0.0, n.Normalize(1000.0))
}

func TestWinsorization(t *testing.T) {
	n := newTestNormalizer(100, 10)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		n.Update(rng.NormFloat64())
	}
	// an absurd outlier clamps to the bound, never beyond
	assert.Equal(t, 3.0, n.Normalize(1e6))
	assert.Equal(t, -3.0, n.Normalize(-1e6))
	for i := 0; i < 50; i++ {
		z := n.Normalize(rng.NormFloat64() * 10)
		assert.LessOrEqual(t, math.Abs(z), 3.0)
	}
}

func TestWindowExpiryShiftsBaseline(t *testing.T) {
	n := newTestNormalizer(10, 5)
	for i := 0; i < 10; i++ {
		n.Update(10.0 + float64(i%2)) // window around 10.5
	}
	// regime shift: fill the window with values around 100
	for i := 0; i < 10; i++ {
		n.Update(100.0 + float64(i%2))
	}
	st := n.Stats()
	assert.InDelta(t, 100.5, st.Mean, 1e-9)
	assert.Equal(t, 10, st.WindowLen)
	// 100.5 is now ordinary, not an outlier
	assert.InDelta(t, 0, n.Normalize(100.5), 1e-9)
}

func TestNonFiniteSamplesIgnored(t *testing.T) {
	n := newTestNormalizer(50, 5)
	for i := 0; i < 10; i++ {
		n.Update(float64(i))
	}
	before := n.Stats()
	n.Update(math.NaN())
	n.Update(math.Inf(1))
	n.Update(math.Inf(-1))
	after := n.Stats()
	assert.Equal(t, before, after)
	assert.Equal(t, 0.0, n.Normalize(math.NaN()))
}

func TestReset(t *testing.T) {
	n := newTestNormalizer(50, 5)
	for i := 0; i < 10; i++ {
		n.Update(float64(i))
	}
	n.Reset()
	assert.False(t, n.IsReady())
	st := n.Stats()
	assert.Equal(t, uint64(0), st.Count)
	assert.Equal(t, 0, st.WindowLen)
}

func TestRollingStatsMatchesDirectComputation(t *testing.T) {
	s := newRollingStats(32)
	rng := rand.New(rand.NewSource(7))
	var window []float64
	for i := 0; i < 500; i++ {
		x := rng.NormFloat64()*5 + 2
		s.add(x)
		window = append(window, x)
		if len(window) > 32 {
			window = window[1:]
		}

		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(len(window))
		var m2 float64
		for _, v := range window {
			d := v - mean
			m2 += d * d
		}
		assert.InDelta(t, mean, s.mean, 1e-6)
		assert.InDelta(t, m2/float64(len(window)), s.variance(), 1e-6)
	}
}

func TestRegistryKeysAreIndependent(t *testing.T) {
	r := NewRegistry(Config{Lookback: 10, MinSamples: 2, WinsorBound: 3}, logger.Nop())
	a := r.Get("BTCUSDT", "momentum")
	b := r.Get("BTCUSDT", "cvd")
	c := r.Get("ETHUSDT", "momentum")
	assert.NotSame(t, a, b)
	assert.NotSame(t, a, c)
	assert.Same(t, a, r.Get("BTCUSDT", "momentum"))

	for i := 0; i < 5; i++ {
		a.Update(float64(i))
	}
	assert.True(t, a.IsReady())
	assert.False(t, c.IsReady())

	r.ResetSymbol("BTCUSDT")
	assert.False(t, r.Get("BTCUSDT", "momentum").IsReady())
	// other symbols untouched
	for i := 0; i < 5; i++ {
		c.Update(float64(i))
	}
	assert.True(t, r.Get("ETHUSDT", "momentum").IsReady())
}
