package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeDivide(t *testing.T) {
	tests := []struct {
		name string
		num  float64
		den  float64
		def  float64
		want float64
	}{
		{"normal", 10, 2, 0, 5},
		{"zero denominator", 10, 0, 50, 50},
		{"near-zero denominator", 10, 1e-12, 50, 50},
		{"negative", -10, 4, 0, -2.5},
		{"nan numerator", math.NaN(), 2, 7, 7},
		{"inf denominator", 10, math.Inf(1), 7, 7},
		{"nan both", math.NaN(), math.NaN(), -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeDivide(tt.num, tt.den, tt.def))
		})
	}
}

func TestSafeDivideSlice(t *testing.T) {
	got := SafeDivideSlice([]float64{10, 4, 1}, []float64{2, 0, 4}, -1)
	assert.Equal(t, []float64{5, -1, 0.25}, got)

	// mismatched lengths resolve every element to the default
	got = SafeDivideSlice([]float64{1, 2}, []float64{1}, 9)
	assert.Equal(t, []float64{9, 9}, got)
}

func TestSafePercentage(t *testing.T) {
	assert.Equal(t, 25.0, SafePercentage(1, 4, 0))
	assert.Equal(t, 50.0, SafePercentage(3, 0, 50))
	assert.Equal(t, 50.0, SafePercentage(math.Inf(1), 4, 50))
}

func TestSafeLog(t *testing.T) {
	assert.InDelta(t, math.Log(2), SafeLog(2, 0), 1e-12)
	assert.Equal(t, -1.0, SafeLog(0, -1))
	assert.Equal(t, -1.0, SafeLog(-5, -1))
	assert.Equal(t, -1.0, SafeLog(math.NaN(), -1))
}

func TestSafeLogBase(t *testing.T) {
	assert.InDelta(t, 3.0, SafeLogBase(8, 2, 0), 1e-12)
	assert.Equal(t, 9.0, SafeLogBase(8, 0, 9))
	assert.Equal(t, 9.0, SafeLogBase(-3, 10, 9))
}

func TestSafeSqrt(t *testing.T) {
	assert.Equal(t, 3.0, SafeSqrt(9, 0))
	// tiny negatives from float error clamp to zero
	assert.Equal(t, 0.0, SafeSqrt(-1e-12, 7))
	// real negatives fall back
	assert.Equal(t, 7.0, SafeSqrt(-1, 7))
	assert.Equal(t, 7.0, SafeSqrt(math.Inf(-1), 7))
}

func TestClipToRange(t *testing.T) {
	assert.Equal(t, 5.0, ClipToRange(5, 0, 10, 0))
	assert.Equal(t, 10.0, ClipToRange(15, 0, 10, 0))
	assert.Equal(t, 0.0, ClipToRange(-3, 0, 10, 0))
	assert.Equal(t, 10.0, ClipToRange(math.Inf(1), 0, 10, 0))
	assert.Equal(t, 0.0, ClipToRange(math.Inf(-1), 0, 10, 0))
	assert.Equal(t, 4.0, ClipToRange(math.NaN(), 0, 10, 4))
}

func TestEnsureScoreRange(t *testing.T) {
	assert.Equal(t, 100.0, EnsureScoreRange(250))
	assert.Equal(t, 0.0, EnsureScoreRange(-3))
	assert.Equal(t, 62.5, EnsureScoreRange(62.5))
	assert.Equal(t, 0.0, EnsureScoreRange(math.NaN()))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(0))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.Inf(-1)))
}
