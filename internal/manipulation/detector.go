// Package manipulation screens raw order books and order-flow events for
// spoofing and layering before their influence reaches the aggregator.
package manipulation

import (
	"math"
	"sync"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/safemath"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// Config holds detection thresholds. All values are externally supplied.
type Config struct {
	SizeMultiplier      float64 `yaml:"size_multiplier" default:"5.0"`       // × rolling average order size
	CancelRateThreshold float64 `yaml:"cancel_rate_threshold" default:"0.78"` // cancellation rate of similar orders
	MinHistory          int     `yaml:"min_history" default:"20"`             // events required before accusing
	UniformityThreshold float64 `yaml:"uniformity_threshold" default:"0.85"`  // layering size+spacing uniformity
	TopLevels           int     `yaml:"top_levels" default:"10"`              // book levels examined for layering
	MaxHistory          int     `yaml:"max_history" default:"2000"`           // rolling event window per symbol
	PriceTolerance      float64 `yaml:"price_tolerance" default:"0.005"`      // relative price band for "similar"
	SizeTolerance       float64 `yaml:"size_tolerance" default:"0.5"`         // size band factor for "similar"
}

func DefaultConfig() Config {
	return Config{
		SizeMultiplier:      5.0,
		CancelRateThreshold: 0.78,
		MinHistory:          20,
		UniformityThreshold: 0.85,
		TopLevels:           10,
		MaxHistory:          2000,
		PriceTolerance:      0.005,
		SizeTolerance:       0.5,
	}
}

type SpoofingResult struct {
	IsSpoofing bool    `json:"is_spoofing"`
	Confidence float64 `json:"confidence"`
}

type LayeringResult struct {
	IsLayering        bool    `json:"is_layering"`
	Confidence        float64 `json:"confidence"`
	SizeUniformity    float64 `json:"size_uniformity"`
	SpacingUniformity float64 `json:"spacing_uniformity"`
	Side              models.Side `json:"side"`
}

// Detector holds per-symbol rolling order-flow history and applies the
// spoofing and layering heuristics against book snapshots. Detection is
// deterministic for identical history and snapshot, and degrades to
// "no detection" when history is insufficient.
type Detector struct {
	cfg  Config
	log  *logger.Logger
	mu   sync.Mutex
	hist map[string]*history
}

func NewDetector(cfg Config, log *logger.Logger) *Detector {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	if cfg.TopLevels <= 0 {
		cfg.TopLevels = DefaultConfig().TopLevels
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Detector{cfg: cfg, log: log, hist: make(map[string]*history)}
}

func (d *Detector) historyFor(symbol string) *history {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.hist[symbol]
	if !ok {
		h = newHistory(d.cfg.MaxHistory)
		d.hist[symbol] = h
	}
	return h
}

// Observe feeds raw order-flow events into the rolling history.
func (d *Detector) Observe(symbol string, events []models.TradeEvent) {
	if len(events) == 0 {
		return
	}
	h := d.historyFor(symbol)
	for _, ev := range events {
		if !safemath.IsFinite(ev.Price) || !safemath.IsFinite(ev.Size) || ev.Size <= 0 {
			d.log.Warn("ignoring degenerate order event",
				logger.String("symbol", symbol),
				logger.Float64("price", ev.Price),
				logger.Float64("size", ev.Size))
			continue
		}
		h.record(ev)
	}
}

// DetectSpoofing flags an order as likely spoofing when it is oversized
// relative to the rolling average and similar historical orders were
// predominantly canceled. Below MinHistory it returns low confidence
// rather than a false accusation.
func (d *Detector) DetectSpoofing(symbol string, order models.BookLevel) SpoofingResult {
	h := d.historyFor(symbol)
	if h.length() < d.cfg.MinHistory {
		return SpoofingResult{}
	}
	avg := h.avgSize()
	if avg < safemath.Epsilon || !safemath.IsFinite(order.Size) || order.Size <= 0 {
		return SpoofingResult{}
	}

	sizeRatio := safemath.SafeDivide(order.Size, avg, 0)
	if sizeRatio < d.cfg.SizeMultiplier {
		return SpoofingResult{}
	}

	cancelRate, matched := h.cancelRateNear(order.Price, order.Size, d.cfg.PriceTolerance, d.cfg.SizeTolerance)
	if matched < d.cfg.MinHistory/4 || cancelRate < d.cfg.CancelRateThreshold {
		return SpoofingResult{Confidence: cancelRate * 0.5}
	}

	// Confidence grows with both the cancel rate and the size excess.
	sizeExcess := safemath.ClipToRange((sizeRatio-d.cfg.SizeMultiplier)/d.cfg.SizeMultiplier, 0, 1, 0)
	conf := safemath.ClipToRange(0.7*cancelRate+0.3*sizeExcess, 0, 1, 0)
	return SpoofingResult{IsSpoofing: true, Confidence: conf}
}

// DetectLayering flags near-uniform order sizing and near-uniform price
// spacing across the top N levels of either book side.
func (d *Detector) DetectLayering(book *models.OrderBook) LayeringResult {
	if book == nil {
		return LayeringResult{Side: models.SideNone}
	}
	bid := d.layeringSide(book.Bids, models.SideBuy)
	ask := d.layeringSide(book.Asks, models.SideSell)
	if ask.Confidence > bid.Confidence {
		return ask
	}
	return bid
}

func (d *Detector) layeringSide(levels []models.BookLevel, side models.Side) LayeringResult {
	res := LayeringResult{Side: side}
	n := d.cfg.TopLevels
	if len(levels) < n {
		n = len(levels)
	}
	if n < 3 {
		return res
	}

	sizes := make([]float64, 0, n)
	spacings := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		if !safemath.IsFinite(levels[i].Price) || !safemath.IsFinite(levels[i].Size) {
			return res
		}
		sizes = append(sizes, levels[i].Size)
		if i > 0 {
			spacings = append(spacings, math.Abs(levels[i].Price-levels[i-1].Price))
		}
	}

	res.SizeUniformity = uniformity(sizes)
	res.SpacingUniformity = uniformity(spacings)
	res.Confidence = safemath.ClipToRange((res.SizeUniformity+res.SpacingUniformity)/2, 0, 1, 0)
	res.IsLayering = res.SizeUniformity > d.cfg.UniformityThreshold &&
		res.SpacingUniformity > d.cfg.UniformityThreshold
	return res
}

// uniformity measures 1 - stdev/mean, clipped to [0,1]. Identical values
// score 1.0; highly dispersed values approach 0.
func uniformity(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if math.Abs(mean) < safemath.Epsilon {
		return 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	std := safemath.SafeSqrt(sq/float64(len(xs)), 0)
	return safemath.ClipToRange(1-safemath.SafeDivide(std, mean, 1), 0, 1, 0)
}

// FilterOrderbook returns an annotated copy of the book with spoof-flagged
// orders optionally removed. The input book is never mutated.
func (d *Detector) FilterOrderbook(book *models.OrderBook, removeSuspicious bool) *models.FilteredOrderbook {
	if book == nil {
		return &models.FilteredOrderbook{}
	}
	out := &models.FilteredOrderbook{Book: book.Clone()}

	layering := d.DetectLayering(book)
	out.LayeringScore = layering.Confidence
	if layering.IsLayering {
		out.ManipulationDetected = true
		out.Evidence = append(out.Evidence, models.ManipulationEvidence{
			Pattern:      models.PatternLayering,
			Confidence:   layering.Confidence,
			AffectedSide: layering.Side,
		})
	}

	out.Book.Bids = d.filterSide(book.Symbol, out.Book.Bids, models.SideBuy, removeSuspicious, out)
	out.Book.Asks = d.filterSide(book.Symbol, out.Book.Asks, models.SideSell, removeSuspicious, out)
	return out
}

func (d *Detector) filterSide(symbol string, levels []models.BookLevel, side models.Side, remove bool, out *models.FilteredOrderbook) []models.BookLevel {
	kept := levels[:0]
	for _, lvl := range levels {
		sp := d.DetectSpoofing(symbol, lvl)
		if !sp.IsSpoofing {
			kept = append(kept, lvl)
			continue
		}
		out.ManipulationDetected = true
		out.Evidence = append(out.Evidence, models.ManipulationEvidence{
			Pattern:      models.PatternSpoofing,
			Confidence:   sp.Confidence,
			AffectedSide: side,
		})
		d.log.Debug("spoofing suspected",
			logger.String("symbol", symbol),
			logger.String("side", string(side)),
			logger.Float64("price", lvl.Price),
			logger.Float64("confidence", sp.Confidence))
		if remove {
			out.OrdersRemoved++
			continue
		}
		kept = append(kept, lvl)
	}
	for i := range out.Evidence {
		out.Evidence[i].OrdersRemoved = out.OrdersRemoved
	}
	return kept
}

// Penalty condenses evidence into a single [0,1] manipulation penalty,
// the maximum confidence across detections.
func Penalty(evidence []models.ManipulationEvidence) float64 {
	var p float64
	for _, ev := range evidence {
		if ev.Confidence > p {
			p = ev.Confidence
		}
	}
	return safemath.ClipToRange(p, 0, 1, 0)
}

// AdjustScore applies the confidence-adjustment integration mode: the
// affected indicator's normalized score is scaled by 1 - 0.5·penalty
// instead of being discarded.
func AdjustScore(normalized, penalty float64) float64 {
	penalty = safemath.ClipToRange(penalty, 0, 1, 0)
	return normalized * (1 - 0.5*penalty)
}
