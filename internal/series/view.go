package series

import (
	"math"

	"trading-chartv1/internal/model"
)

// View is a read-only window over a Series. It shares the series storage and
// is valid until the next mutation; callers that keep it longer must Copy it.
type View struct {
	candles []model.Candle
	first   int
}

// Len is the number of candles in the window.
func (v View) Len() int { return len(v.candles) }

// First is the series index of the window's first candle.
func (v View) First() int { return v.first }

// End is the series index one past the window's last candle.
func (v View) End() int { return v.first + len(v.candles) }

// At returns the i-th candle of the window (0-based within the window).
func (v View) At(i int) model.Candle { return v.candles[i] }

// Copy detaches the window from the series.
func (v View) Copy() []model.Candle {
	out := make([]model.Candle, len(v.candles))
	copy(out, v.candles)
	return out
}

// PriceRange returns min(low) and max(high) over the window.
// ok is false for an empty window.
func (v View) PriceRange() (low, high float64, ok bool) {
	if len(v.candles) == 0 {
		return 0, 0, false
	}
	low, high = math.Inf(1), math.Inf(-1)
	for _, c := range v.candles {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	return low, high, true
}

// MaxVolume returns the largest volume in the window.
func (v View) MaxVolume() float64 {
	m := 0.0
	for _, c := range v.candles {
		m = math.Max(m, c.Volume)
	}
	return m
}
