package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceHistoryBound(t *testing.T) {
	h := NewPriceHistory(100)
	for i := 0; i < 250; i++ {
		h.Push(float64(i))
	}
	assert.Equal(t, 100, h.Len())

	// Exactly the last 100 values, in arrival order.
	prices := h.Prices()
	assert.Equal(t, float64(150), prices[0])
	assert.Equal(t, float64(249), prices[99])
}

func TestPriceHistoryAverage(t *testing.T) {
	h := NewPriceHistory(3)
	assert.Equal(t, 0.0, h.Average())

	h.Push(0.0995)
	h.Push(0.1000)
	h.Push(0.1005)
	assert.InDelta(t, 0.1000, h.Average(), 1e-12)

	// Eviction keeps the sum consistent.
	h.Push(0.1005)
	assert.InDelta(t, (0.1000+0.1005+0.1005)/3, h.Average(), 1e-12)
}

func TestPriceHistoryReset(t *testing.T) {
	h := NewPriceHistory(10)
	h.Push(1)
	h.Push(2)
	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0.0, h.Average())

	h.Push(5)
	assert.Equal(t, 5.0, h.Average())
}
