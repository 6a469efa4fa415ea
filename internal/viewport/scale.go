package viewport

import "math"

// PriceScale is the vertical mapping for the visible window.
type PriceScale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	// Degenerate is set when the window was flat and an epsilon range was substituted.
	Degenerate bool `json:"degenerate,omitempty"`
}

// NewPriceScale spans [low, high]. A zero or inverted range is replaced by a
// small epsilon range centred on the price.
func NewPriceScale(low, high float64) PriceScale {
	if high < low {
		low, high = high, low
	}
	mag := math.Max(math.Abs(low), math.Abs(high))
	if high-low > math.Max(mag*1e-12, 1e-15) {
		return PriceScale{Min: low, Max: high}
	}
	mid := (low + high) / 2
	half := math.Max(mag*1e-4, 1e-9)
	return PriceScale{Min: mid - half, Max: mid + half, Degenerate: true}
}

// Range is max - min, never zero.
func (s PriceScale) Range() float64 { return s.Max - s.Min }

// PriceToY is y = h*(1 - (p - min)/range).
func (s PriceScale) PriceToY(price, height float64) float64 {
	return height * (1 - (price-s.Min)/s.Range())
}

// YToPrice is the inverse of PriceToY: price = min + range*(1 - y/h).
func (s PriceScale) YToPrice(y, height float64) float64 {
	return s.Min + s.Range()*(1-y/height)
}

// PriceToY maps price to pixel y on a plot of the given height.
func PriceToY(price float64, scale PriceScale, height float64) float64 {
	return scale.PriceToY(price, height)
}

// Levels returns count evenly spaced prices from Max down to Min, used for
// axis labels and horizontal grid lines.
func (s PriceScale) Levels(count int) []float64 {
	if count < 2 {
		return []float64{s.Max}
	}
	out := make([]float64, count)
	step := s.Range() / float64(count-1)
	for i := range out {
		out[i] = s.Max - float64(i)*step
	}
	return out
}
