package analysis

// PriceHistory is a bounded FIFO window of observed prices with a running sum
// for O(1) moving-average reads. It is owned by a single goroutine (the
// monitoring loop) and is not safe for concurrent use.
type PriceHistory struct {
	max    int
	prices []float64
	sum    float64
}

func NewPriceHistory(max int) *PriceHistory {
	if max < 1 {
		max = 1
	}
	return &PriceHistory{max: max, prices: make([]float64, 0, max+1)}
}

// Push appends a price, evicting the oldest once the window is full.
func (h *PriceHistory) Push(price float64) {
	h.prices = append(h.prices, price)
	h.sum += price
	if len(h.prices) > h.max {
		h.sum -= h.prices[0]
		h.prices = h.prices[1:]
	}
}

func (h *PriceHistory) Len() int { return len(h.prices) }

// Average is the simple moving average over the window, 0 when empty.
func (h *PriceHistory) Average() float64 {
	if len(h.prices) == 0 {
		return 0
	}
	return h.sum / float64(len(h.prices))
}

// Reset clears the window. The strategy calls this after a close so a new
// trade starts from a fresh observation window.
func (h *PriceHistory) Reset() {
	h.prices = h.prices[:0]
	h.sum = 0
}

// Prices returns the window contents in arrival order.
func (h *PriceHistory) Prices() []float64 {
	out := make([]float64, len(h.prices))
	copy(out, h.prices)
	return out
}
