package models

import "time"

type FilterOutcome string

const (
	OutcomePassed   FilterOutcome = "passed"
	OutcomeFiltered FilterOutcome = "filtered"
)

// Filter reasons attached to suppressed signals.
const (
	ReasonHighDisagreement = "high_disagreement"
	ReasonLowConfidence    = "low_confidence"
	ReasonInvalidQuality   = "invalid_quality"
)

// FilterDecision is the gatekeeper verdict for one evaluation.
type FilterDecision struct {
	Outcome FilterOutcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
}

func (d FilterDecision) Passed() bool {
	return d.Outcome == OutcomePassed
}

// SignalEvent is the published envelope: every evaluation, passed or
// filtered, leaves the engine so downstream consumers can render
// "signal suppressed" rather than silence.
type SignalEvent struct {
	Symbol   string            `json:"symbol"`
	Result   *ConfluenceResult `json:"result"`
	Decision FilterDecision    `json:"decision"`
}

// QualityLogEntry is the append-only audit record of one quality decision.
// Written once, never mutated.
type QualityLogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	ConfluenceScore float64   `json:"confluence_score"`
	Consensus       float64   `json:"consensus"`
	Confidence      float64   `json:"confidence"`
	Disagreement    float64   `json:"disagreement"`
	Filtered        bool      `json:"filtered"`
	FilterReason    string    `json:"filter_reason,omitempty"`
}
