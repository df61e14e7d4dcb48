package models

import "time"

// Quality is the categorical trust level of a confluence result.
type Quality string

const (
	QualityHigh    Quality = "high"
	QualityMedium  Quality = "medium"
	QualityLow     Quality = "low"
	QualityInvalid Quality = "invalid"
)

type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionNeutral Direction = "neutral"
)

// ConfluenceResult is the combined, quality-annotated output of one
// evaluation. Created fresh per cycle and immutable once returned.
type ConfluenceResult struct {
	Symbol        string    `json:"symbol"`
	Score         float64   `json:"score"`     // display scale [0,100], 50 = neutral
	ScoreRaw      float64   `json:"score_raw"` // [-1,1]
	Consensus     float64   `json:"consensus"`
	Confidence    float64   `json:"confidence"`
	Disagreement  float64   `json:"disagreement"`
	SignalsUsed   []string  `json:"signals_used"`
	SignalsFailed []string  `json:"signals_failed,omitempty"`
	Quality       Quality   `json:"quality"`
	Timestamp     time.Time `json:"timestamp"`
}

// Direction maps the raw score sign onto a trade direction. Scores inside
// the neutral band (|raw| < 0.1) carry no directional information.
func (r *ConfluenceResult) Direction() Direction {
	const neutralBand = 0.1
	switch {
	case r.Quality == QualityInvalid:
		return DirectionNeutral
	case r.ScoreRaw >= neutralBand:
		return DirectionBuy
	case r.ScoreRaw <= -neutralBand:
		return DirectionSell
	default:
		return DirectionNeutral
	}
}
