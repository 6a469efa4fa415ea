package viewport

import "math"

// Layout is the resolved geometry of one frame: candle count, plot size and
// committed transform. It is a value and safe to share with render layers.
type Layout struct {
	N         int       `json:"n"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Transform Transform `json:"transform"`
	Slot      float64   `json:"slot"`
}

// NewLayout resolves slot width for n candles.
func NewLayout(n int, width, height float64, t Transform, base int) Layout {
	if base <= 0 {
		base = DefaultBaseVisible
	}
	return Layout{
		N:         n,
		Width:     width,
		Height:    height,
		Transform: t,
		Slot:      SlotWidth(n, width, t.Zoom, base),
	}
}

// IndexToX returns the x of the centre of candle i.
func (l Layout) IndexToX(i int) float64 {
	return IndexToX(i, l.N, l.Width, l.Slot, l.Transform.Pan)
}

// IndexToX is x = width - (n - i - 0.5)*slot + pan.
func IndexToX(i, n int, width, slot, pan float64) float64 {
	return width - (float64(n-i)-0.5)*slot + pan
}

// XToIndex returns the candle whose slot contains x, or false when x falls
// outside the data.
func (l Layout) XToIndex(x float64) (int, bool) {
	if l.Slot <= 0 || l.N == 0 {
		return -1, false
	}
	i := int(math.Floor(float64(l.N) - (l.Width+l.Transform.Pan-x)/l.Slot))
	if i < 0 || i >= l.N {
		return -1, false
	}
	return i, true
}

// VisibleRange returns [first, end) of candles at least partly inside the
// plot. It is always a subset of [0, N).
func (l Layout) VisibleRange() (first, end int) {
	if l.N == 0 || l.Slot <= 0 {
		return 0, 0
	}
	first = int(math.Floor(float64(l.N) - (l.Width+l.Transform.Pan)/l.Slot))
	end = int(math.Ceil(float64(l.N) - l.Transform.Pan/l.Slot))
	if first < 0 {
		first = 0
	}
	if end > l.N {
		end = l.N
	}
	if first > end {
		first = end
	}
	return first, end
}

// BodyWidth is the drawn width of a candle body, leaving a gap between slots.
func (l Layout) BodyWidth() float64 {
	return math.Max(1, l.Slot*0.7)
}
