package models

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideNone Side = "none"
)

type OrderStatus string

const (
	OrderPlaced   OrderStatus = "placed"
	OrderCanceled OrderStatus = "canceled"
	OrderFilled   OrderStatus = "filled"
)

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  Side    `json:"side"`
}

// OrderBook is a point-in-time snapshot. Bids are ordered best (highest)
// first, asks best (lowest) first.
type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// Clone returns a deep copy so downstream filtering never mutates the input.
func (b *OrderBook) Clone() *OrderBook {
	if b == nil {
		return nil
	}
	cp := &OrderBook{
		Symbol:    b.Symbol,
		Bids:      make([]BookLevel, len(b.Bids)),
		Asks:      make([]BookLevel, len(b.Asks)),
		Timestamp: b.Timestamp,
	}
	copy(cp.Bids, b.Bids)
	copy(cp.Asks, b.Asks)
	return cp
}

// TradeEvent is one order lifecycle event from the raw feed.
type TradeEvent struct {
	Price     float64     `json:"price"`
	Size      float64     `json:"size"`
	Side      Side        `json:"side"`
	Timestamp time.Time   `json:"timestamp"`
	Status    OrderStatus `json:"status"`
}

type ManipulationPattern string

const (
	PatternSpoofing ManipulationPattern = "spoofing"
	PatternLayering ManipulationPattern = "layering"
	PatternNone     ManipulationPattern = "none"
)

// ManipulationEvidence describes a detection against one book snapshot.
// Produced per snapshot and consumed immediately, never persisted.
type ManipulationEvidence struct {
	Pattern       ManipulationPattern `json:"pattern"`
	Confidence    float64             `json:"confidence"`
	AffectedSide  Side                `json:"affected_side"`
	OrdersRemoved uint                `json:"orders_removed"`
}

// FilteredOrderbook is an annotated copy of a book after spoof/layering
// screening. The original snapshot is left untouched.
type FilteredOrderbook struct {
	Book                 *OrderBook             `json:"book"`
	ManipulationDetected bool                   `json:"manipulation_detected"`
	OrdersRemoved        uint                   `json:"orders_removed"`
	LayeringScore        float64                `json:"layering_score"`
	Evidence             []ManipulationEvidence `json:"evidence,omitempty"`
}
