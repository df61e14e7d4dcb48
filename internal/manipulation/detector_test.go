package manipulation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

func newTestDetector() *Detector {
	return NewDetector(DefaultConfig(), logger.Nop())
}

// spoofHistory is 35 ordinary small orders plus 5 oversized orders near
// price 100 that were all canceled.
func spoofHistory(large models.OrderStatus) []models.TradeEvent {
	now := time.Now()
	events := make([]models.TradeEvent, 0, 40)
	for i := 0; i < 35; i++ {
		events = append(events, models.TradeEvent{
			Price: 100, Size: 2, Side: models.SideBuy, Timestamp: now, Status: models.OrderFilled,
		})
	}
	for i := 0; i < 5; i++ {
		events = append(events, models.TradeEvent{
			Price: 100, Size: 60, Side: models.SideBuy, Timestamp: now, Status: large,
		})
	}
	return events
}

func TestDetectSpoofingInsufficientHistory(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled)[:10])

	res := d.DetectSpoofing("BTCUSDT", models.BookLevel{Price: 100, Size: 1000})
	assert.False(t, res.IsSpoofing)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestDetectSpoofingFlagsOversizedCanceled(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled))

	res := d.DetectSpoofing("BTCUSDT", models.BookLevel{Price: 100, Size: 60})
	require.True(t, res.IsSpoofing)
	assert.Greater(t, res.Confidence, 0.7)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestDetectSpoofingFilledHistoryIsNotSpoofing(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderFilled))

	res := d.DetectSpoofing("BTCUSDT", models.BookLevel{Price: 100, Size: 60})
	assert.False(t, res.IsSpoofing)
}

func TestDetectSpoofingOrdinarySizeIsNotSpoofing(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled))

	res := d.DetectSpoofing("BTCUSDT", models.BookLevel{Price: 100, Size: 3})
	assert.False(t, res.IsSpoofing)
}

func TestDetectSpoofingIsDeterministic(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled))

	order := models.BookLevel{Price: 100, Size: 60}
	a := d.DetectSpoofing("BTCUSDT", order)
	b := d.DetectSpoofing("BTCUSDT", order)
	assert.Equal(t, a, b)
}

func TestObserveIgnoresDegenerateEvents(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", []models.TradeEvent{
		{Price: math.NaN(), Size: 10},
		{Price: 100, Size: -1},
		{Price: 100, Size: 0},
		{Price: math.Inf(1), Size: 10},
	})
	assert.Equal(t, 0, d.historyFor("BTCUSDT").length())
}

func uniformBook(levels int) *models.OrderBook {
	book := &models.OrderBook{Symbol: "BTCUSDT", Timestamp: time.Now()}
	for i := 0; i < levels; i++ {
		book.Bids = append(book.Bids, models.BookLevel{Price: 100 - float64(i), Size: 50, Side: models.SideBuy})
		book.Asks = append(book.Asks, models.BookLevel{Price: 101 + float64(i)*1.7, Size: 10 + float64(i*i), Side: models.SideSell})
	}
	return book
}

func TestDetectLayeringUniformSide(t *testing.T) {
	d := newTestDetector()
	res := d.DetectLayering(uniformBook(10))

	require.True(t, res.IsLayering)
	assert.Equal(t, models.SideBuy, res.Side)
	assert.InDelta(t, 1.0, res.SizeUniformity, 1e-9)
	assert.InDelta(t, 1.0, res.SpacingUniformity, 1e-9)
}

func TestDetectLayeringIrregularBook(t *testing.T) {
	d := newTestDetector()
	book := &models.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []models.BookLevel{
			{Price: 100, Size: 3}, {Price: 99.8, Size: 90}, {Price: 99.1, Size: 12},
			{Price: 97, Size: 260}, {Price: 96.9, Size: 1},
		},
	}
	res := d.DetectLayering(book)
	assert.False(t, res.IsLayering)
}

func TestDetectLayeringNeedsThreeLevels(t *testing.T) {
	d := newTestDetector()
	book := &models.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []models.BookLevel{{Price: 100, Size: 50}, {Price: 99, Size: 50}},
	}
	res := d.DetectLayering(book)
	assert.False(t, res.IsLayering)
	assert.Equal(t, 0.0, res.Confidence)

	assert.False(t, d.DetectLayering(nil).IsLayering)
}

func TestFilterOrderbookRemovesSpoofedLevels(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled))

	book := &models.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []models.BookLevel{
			{Price: 100, Size: 60, Side: models.SideBuy}, // spoof profile
			{Price: 99, Size: 3, Side: models.SideBuy},
		},
		Asks: []models.BookLevel{
			{Price: 101, Size: 3, Side: models.SideSell},
		},
	}
	out := d.FilterOrderbook(book, true)

	require.True(t, out.ManipulationDetected)
	assert.Equal(t, uint(1), out.OrdersRemoved)
	assert.Len(t, out.Book.Bids, 1)
	assert.Equal(t, 99.0, out.Book.Bids[0].Price)
	require.NotEmpty(t, out.Evidence)
	assert.Equal(t, models.PatternSpoofing, out.Evidence[0].Pattern)

	// input snapshot was never mutated
	assert.Len(t, book.Bids, 2)
	assert.Equal(t, 100.0, book.Bids[0].Price)
}

func TestFilterOrderbookAnnotateOnly(t *testing.T) {
	d := newTestDetector()
	d.Observe("BTCUSDT", spoofHistory(models.OrderCanceled))

	book := &models.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []models.BookLevel{
			{Price: 100, Size: 60, Side: models.SideBuy},
			{Price: 99, Size: 3, Side: models.SideBuy},
		},
	}
	out := d.FilterOrderbook(book, false)

	assert.True(t, out.ManipulationDetected)
	assert.Equal(t, uint(0), out.OrdersRemoved)
	assert.Len(t, out.Book.Bids, 2)
}

func TestFilterOrderbookNilBook(t *testing.T) {
	d := newTestDetector()
	out := d.FilterOrderbook(nil, true)
	assert.False(t, out.ManipulationDetected)
	assert.Nil(t, out.Book)
}

func TestPenalty(t *testing.T) {
	assert.Equal(t, 0.0, Penalty(nil))
	assert.InDelta(t, 0.8, Penalty([]models.ManipulationEvidence{
		{Pattern: models.PatternSpoofing, Confidence: 0.8},
		{Pattern: models.PatternLayering, Confidence: 0.4},
	}), 1e-12)
}

func TestAdjustScore(t *testing.T) {
	// full penalty halves the contribution
	assert.InDelta(t, 0.3, AdjustScore(0.6, 1.0), 1e-12)
	// no penalty leaves it untouched
	assert.InDelta(t, 0.6, AdjustScore(0.6, 0), 1e-12)
	// sign preserved
	assert.InDelta(t, -0.45, AdjustScore(-0.6, 0.5), 1e-12)
}

func TestHistoryRingEviction(t *testing.T) {
	h := newHistory(4)
	for i := 1; i <= 6; i++ {
		h.record(models.TradeEvent{Price: 100, Size: float64(i), Status: models.OrderPlaced})
	}
	assert.Equal(t, 4, h.length())
	// sizes 3,4,5,6 remain
	assert.InDelta(t, 4.5, h.avgSize(), 1e-12)
}
