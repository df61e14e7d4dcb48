package manipulation

import (
	"sync"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
)

// history keeps a bounded rolling window of order-flow events for one
// symbol plus a running size sum so the average order size is O(1).
type history struct {
	mu      sync.Mutex
	events  []models.TradeEvent // ring buffer
	head    int
	size    int
	sizeSum float64
}

func newHistory(capacity int) *history {
	return &history{events: make([]models.TradeEvent, capacity)}
}

func (h *history) record(ev models.TradeEvent) {
	h.mu.Lock()
	if h.size == len(h.events) {
		h.sizeSum -= h.events[h.head].Size
		h.head = (h.head + 1) % len(h.events)
		h.size--
	}
	tail := (h.head + h.size) % len(h.events)
	h.events[tail] = ev
	h.size++
	h.sizeSum += ev.Size
	h.mu.Unlock()
}

func (h *history) length() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

func (h *history) avgSize() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return 0
	}
	return h.sizeSum / float64(h.size)
}

// cancelRateNear computes the cancellation rate among historical events
// with a similar price (relative tolerance) and similar size (within the
// given factor either way). Returns the rate and the number of matches.
func (h *history) cancelRateNear(price, size, priceTol, sizeFactor float64) (float64, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	matched, canceled := 0, 0
	for i := 0; i < h.size; i++ {
		ev := h.events[(h.head+i)%len(h.events)]
		if !similarPrice(ev.Price, price, priceTol) || !similarSize(ev.Size, size, sizeFactor) {
			continue
		}
		matched++
		if ev.Status == models.OrderCanceled {
			canceled++
		}
	}
	if matched == 0 {
		return 0, 0
	}
	return float64(canceled) / float64(matched), matched
}

func similarPrice(a, b, tol float64) bool {
	if b == 0 {
		return a == 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/b <= tol
}

func similarSize(a, b, factor float64) bool {
	if b <= 0 || a <= 0 {
		return false
	}
	return a >= b*factor && a <= b/factor
}
