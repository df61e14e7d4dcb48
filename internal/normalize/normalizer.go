// Package normalize converts raw, differently-scaled indicator outputs into
// comparable winsorized z-scores using per-(indicator,symbol) rolling state.
package normalize

import (
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/safemath"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"

	"sync"
)

// Config bounds the rolling window and the normalization output.
type Config struct {
	Lookback    int     `yaml:"lookback" default:"200"`      // window size in samples
	MinSamples  uint64  `yaml:"min_samples" default:"20"`    // observations required before normalizing
	WinsorBound float64 `yaml:"winsor_bound" default:"3.0"`  // z-score clamp, ± bound
}

func DefaultConfig() Config {
	return Config{Lookback: 200, MinSamples: 20, WinsorBound: 3.0}
}

// Normalizer is the rolling z-score state for one (indicator, symbol) pair.
// Update and Normalize are safe for concurrent use; each Update is atomic.
type Normalizer struct {
	mu    sync.Mutex
	cfg   Config
	stats *rollingStats
	count uint64 // total accepted samples; only ever increases
	log   *logger.Logger
}

// Snapshot exposes diagnostic statistics for observability.
type Snapshot struct {
	Count     uint64  `json:"count"`
	WindowLen int     `json:"window_len"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Ready     bool    `json:"ready"`
}

func New(cfg Config, log *logger.Logger) *Normalizer {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.WinsorBound <= 0 {
		cfg.WinsorBound = DefaultConfig().WinsorBound
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{cfg: cfg, stats: newRollingStats(cfg.Lookback), log: log}
}

// Update incorporates a new sample. Non-finite inputs are ignored with a
// warning and do not corrupt state.
func (n *Normalizer) Update(raw float64) {
	if !safemath.IsFinite(raw) {
		n.log.Warn("normalizer ignoring non-finite sample", logger.Float64("raw", raw))
		return
	}
	n.mu.Lock()
	n.stats.add(raw)
	n.count++
	n.mu.Unlock()
}

// Normalize returns the winsorized z-score of raw against the rolling
// window, or 0.0 while the state is not ready or the window has no
// variance to normalize against.
func (n *Normalizer) Normalize(raw float64) float64 {
	if !safemath.IsFinite(raw) {
		n.log.Warn("normalize called with non-finite value", logger.Float64("raw", raw))
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.count < n.cfg.MinSamples {
		return 0
	}
	std := safemath.SafeSqrt(n.stats.variance(), 0)
	if std < safemath.Epsilon {
		return 0
	}
	z := (raw - n.stats.mean) / std
	return safemath.ClipToRange(z, -n.cfg.WinsorBound, n.cfg.WinsorBound, 0)
}

// IsReady reports whether enough samples have been observed to normalize.
func (n *Normalizer) IsReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count >= n.cfg.MinSamples
}

// Stats returns a diagnostic snapshot of the rolling state.
func (n *Normalizer) Stats() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		Count:     n.count,
		WindowLen: n.stats.size,
		Mean:      n.stats.mean,
		Std:       safemath.SafeSqrt(n.stats.variance(), 0),
		Ready:     n.count >= n.cfg.MinSamples,
	}
}

// WinsorBound returns the configured z-score clamp.
func (n *Normalizer) WinsorBound() float64 {
	return n.cfg.WinsorBound
}

// Reset clears all rolling state. Explicit operation, e.g. on delisting.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	n.stats.reset()
	n.count = 0
	n.mu.Unlock()
}
