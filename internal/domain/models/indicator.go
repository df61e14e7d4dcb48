package models

import "time"

// IndicatorSample is one raw indicator reading for a symbol within a single
// evaluation cycle. Values arrive in the indicator's native range, [0,100]
// unless the producing calculator documents otherwise.
type IndicatorSample struct {
	Name      string    `json:"name"`
	RawValue  float64   `json:"raw_value"`
	Timestamp time.Time `json:"timestamp"`
}

// EvaluationCycle carries everything needed to score one symbol once:
// the indicator readings plus the optional raw book and order-flow events
// consumed by manipulation detection.
type EvaluationCycle struct {
	Symbol    string            `json:"symbol"`
	Samples   []IndicatorSample `json:"samples"`
	OrderBook *OrderBook        `json:"orderbook,omitempty"`
	Trades    []TradeEvent      `json:"trades,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
