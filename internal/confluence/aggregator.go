// Package confluence combines weighted per-indicator signals into one
// scored, quality-annotated result.
package confluence

import (
	"math"
	"sort"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/safemath"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// QualityPolicy classifies results. Every threshold is configuration,
// never an invisible constant.
type QualityPolicy struct {
	MinIndicators        int           `yaml:"min_indicators" default:"3"`
	MaxStaleness         time.Duration `yaml:"max_staleness" default:"60s"`
	LowConfidenceBelow   float64       `yaml:"low_confidence_below" default:"0.3" validate:"gte=0,lte=1"`
	HighDisagreementOver float64       `yaml:"high_disagreement_over" default:"0.3" validate:"gte=0"`
	HighConfidenceFrom   float64       `yaml:"high_confidence_from" default:"0.6" validate:"gte=0,lte=1"`
	HighCoverageFrom     float64       `yaml:"high_coverage_from" default:"0.8" validate:"gte=0,lte=1"`
}

// Config tunes the combination. Lambda is the consensus decay constant:
// consensus = exp(-lambda * disagreement). Reference values are 2.0-3.0;
// the default 2.0 reproduces the calibration fixtures.
type Config struct {
	Lambda    float64       `yaml:"lambda" default:"2.0" validate:"gt=0"`
	Midpoint  float64       `yaml:"midpoint" default:"50"`
	HalfRange float64       `yaml:"half_range" default:"50"`
	Quality   QualityPolicy `yaml:"quality"`
}

func DefaultConfig() Config {
	return Config{
		Lambda:    2.0,
		Midpoint:  50,
		HalfRange: 50,
		Quality: QualityPolicy{
			MinIndicators:        3,
			MaxStaleness:         60 * time.Second,
			LowConfidenceBelow:   0.3,
			HighDisagreementOver: 0.3,
			HighConfidenceFrom:   0.6,
			HighCoverageFrom:     0.8,
		},
	}
}

// Input is one indicator's contribution for a cycle, in the indicator's
// native display range (Midpoint ± HalfRange).
type Input struct {
	Name      string
	Score     float64
	Timestamp time.Time
}

// Aggregator combines weighted indicator inputs. Stateless between calls:
// identical inputs always yield identical results.
type Aggregator struct {
	cfg     Config
	weights WeightSet
	log     *logger.Logger
}

func NewAggregator(cfg Config, weights WeightSet, log *logger.Logger) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = DefaultConfig().Lambda
	}
	if cfg.HalfRange <= 0 {
		cfg.HalfRange = DefaultConfig().HalfRange
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{cfg: cfg, weights: weights, log: log}, nil
}

// Evaluate combines the inputs into a single result. Malformed individual
// values are excluded and reported in SignalsFailed; total absence of
// usable indicators yields a neutral result with invalid quality. The
// returned values are always finite and within their documented bounds.
func (a *Aggregator) Evaluate(symbol string, inputs []Input, now time.Time) *models.ConfluenceResult {
	res := &models.ConfluenceResult{
		Symbol:    symbol,
		Timestamp: now,
	}

	used := make([]string, 0, len(inputs))
	normalized := make([]float64, 0, len(inputs))
	var freshest time.Time

	for _, in := range inputs {
		if _, ok := a.weights[in.Name]; !ok {
			res.SignalsFailed = append(res.SignalsFailed, in.Name)
			a.log.Debug("indicator has no weight, excluded",
				logger.String("symbol", symbol), logger.String("indicator", in.Name))
			continue
		}
		if !safemath.IsFinite(in.Score) {
			res.SignalsFailed = append(res.SignalsFailed, in.Name)
			a.log.Warn("indicator score not finite, excluded",
				logger.String("symbol", symbol),
				logger.String("indicator", in.Name),
				logger.Float64("score", in.Score))
			continue
		}
		n := safemath.ClipToRange((in.Score-a.cfg.Midpoint)/a.cfg.HalfRange, -1, 1, 0)
		used = append(used, in.Name)
		normalized = append(normalized, n)
		if in.Timestamp.After(freshest) {
			freshest = in.Timestamp
		}
	}
	sort.Strings(res.SignalsFailed)

	weights, ok := a.weights.Renormalize(used)
	if !ok || len(used) == 0 {
		return a.neutralInvalid(res, used)
	}

	var scoreRaw float64
	for i, name := range used {
		scoreRaw += weights[name] * normalized[i]
	}

	res.SignalsUsed = used
	res.ScoreRaw = safemath.ClipToRange(scoreRaw, -1, 1, 0)
	res.Disagreement = populationVariance(normalized)
	res.Consensus = safemath.ClipToRange(math.Exp(-res.Disagreement*a.cfg.Lambda), 0, 1, 0)
	res.Confidence = safemath.ClipToRange(math.Abs(res.ScoreRaw)*res.Consensus, 0, 1, 0)
	res.Score = safemath.EnsureScoreRange(res.ScoreRaw*50 + 50)
	res.Quality = a.classify(res, len(used), len(inputs), freshest, now)
	return res
}

// neutralInvalid is the documented total-failure fallback: score 50,
// consensus 0, confidence 0, quality invalid. Never an error.
func (a *Aggregator) neutralInvalid(res *models.ConfluenceResult, used []string) *models.ConfluenceResult {
	res.SignalsFailed = append(res.SignalsFailed, used...)
	sort.Strings(res.SignalsFailed)
	res.SignalsUsed = nil
	res.Score = 50
	res.ScoreRaw = 0
	res.Consensus = 0
	res.Confidence = 0
	res.Disagreement = 0
	res.Quality = models.QualityInvalid
	a.log.Warn("no usable indicators, neutral invalid result",
		logger.String("symbol", res.Symbol),
		logger.Strings("failed", res.SignalsFailed))
	return res
}

func (a *Aggregator) classify(res *models.ConfluenceResult, usedCount, total int, freshest, now time.Time) models.Quality {
	p := a.cfg.Quality
	if usedCount < p.MinIndicators {
		return models.QualityInvalid
	}
	if p.MaxStaleness > 0 && !freshest.IsZero() && now.Sub(freshest) > p.MaxStaleness {
		return models.QualityInvalid
	}
	if res.Confidence < p.LowConfidenceBelow || res.Disagreement > p.HighDisagreementOver {
		return models.QualityLow
	}
	coverage := safemath.SafeDivide(float64(usedCount), float64(total), 0)
	if coverage >= p.HighCoverageFrom && res.Confidence >= p.HighConfidenceFrom {
		return models.QualityHigh
	}
	return models.QualityMedium
}

// populationVariance is the ddof=0 variance across the used indicators.
func populationVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}
