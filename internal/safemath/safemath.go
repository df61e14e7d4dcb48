// Package safemath provides zero/NaN/Inf-safe arithmetic primitives used
// across the evaluation pipeline. Every function is pure and total: a
// degenerate input resolves to the caller-supplied default and is logged,
// never propagated and never fatal.
package safemath

import (
	"math"
	"sync"

	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// Epsilon is the magnitude below which a denominator is treated as zero.
const Epsilon = 1e-10

var (
	mu            sync.RWMutex
	fallbackLog   *logger.Logger
	warnFallbacks bool
)

// SetLogger enables fallback logging. When warn is true fallbacks are
// reported at warn level, otherwise at debug.
func SetLogger(l *logger.Logger, warn bool) {
	mu.Lock()
	fallbackLog = l
	warnFallbacks = warn
	mu.Unlock()
}

func logFallback(fn string, fields ...logger.Field) {
	mu.RLock()
	l, warn := fallbackLog, warnFallbacks
	mu.RUnlock()
	if l == nil {
		return
	}
	fields = append(fields, logger.String("func", fn))
	if warn {
		l.Warn("safemath fallback", fields...)
		return
	}
	l.Debug("safemath fallback", fields...)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SafeDivide returns num/den, or def when the denominator is within
// Epsilon of zero or either operand is NaN/Inf.
func SafeDivide(num, den, def float64) float64 {
	if !IsFinite(num) || !IsFinite(den) {
		logFallback("safe_divide", logger.Float64("num", num), logger.Float64("den", den))
		return def
	}
	if math.Abs(den) < Epsilon {
		logFallback("safe_divide", logger.Float64("num", num), logger.Float64("den", den))
		return def
	}
	return num / den
}

// SafeDivideSlice divides elementwise with the same per-element semantics
// as SafeDivide. Mismatched lengths yield a slice of defaults.
func SafeDivideSlice(num, den []float64, def float64) []float64 {
	out := make([]float64, len(num))
	if len(num) != len(den) {
		logFallback("safe_divide_slice", logger.Int("num_len", len(num)), logger.Int("den_len", len(den)))
		for i := range out {
			out[i] = def
		}
		return out
	}
	for i := range num {
		out[i] = SafeDivide(num[i], den[i], def)
	}
	return out
}

// SafePercentage returns part/whole as a percentage, or def when the
// division is degenerate.
func SafePercentage(part, whole, def float64) float64 {
	if !IsFinite(part) || !IsFinite(whole) || math.Abs(whole) < Epsilon {
		logFallback("safe_percentage", logger.Float64("part", part), logger.Float64("whole", whole))
		return def
	}
	return part / whole * 100
}

// SafeLog returns ln(x), or def for x <= Epsilon or non-finite x.
func SafeLog(x, def float64) float64 {
	if !IsFinite(x) || x <= Epsilon {
		logFallback("safe_log", logger.Float64("x", x))
		return def
	}
	return math.Log(x)
}

// SafeLogBase returns log of x in the given base via ln(x)/ln(base).
func SafeLogBase(x, base, def float64) float64 {
	if !IsFinite(x) || x <= Epsilon || !IsFinite(base) || base <= Epsilon {
		logFallback("safe_log", logger.Float64("x", x), logger.Float64("base", base))
		return def
	}
	return SafeDivide(math.Log(x), math.Log(base), def)
}

// SafeSqrt returns sqrt(x). Small negatives within Epsilon of zero clamp
// to 0 before the root; anything more negative or non-finite returns def.
func SafeSqrt(x, def float64) float64 {
	if !IsFinite(x) {
		logFallback("safe_sqrt", logger.Float64("x", x))
		return def
	}
	if x < -Epsilon {
		logFallback("safe_sqrt", logger.Float64("x", x))
		return def
	}
	if x < 0 {
		x = 0
	}
	return math.Sqrt(x)
}

// ClipToRange bounds x to [lo, hi]. NaN maps to nanTo, +Inf to hi and
// -Inf to lo.
func ClipToRange(x, lo, hi, nanTo float64) float64 {
	if math.IsNaN(x) {
		logFallback("clip_to_range", logger.Float64("lo", lo), logger.Float64("hi", hi))
		return nanTo
	}
	if math.IsInf(x, 1) || x > hi {
		return hi
	}
	if math.IsInf(x, -1) || x < lo {
		return lo
	}
	return x
}

// EnsureScoreRange bounds x to the display score range [0,100].
func EnsureScoreRange(x float64) float64 {
	return ClipToRange(x, 0, 100, 0)
}
