// Package viewport maps candle indices and prices to pixel coordinates.
//
// The newest candle is anchored to the right edge. Zoom scales the slot
// width relative to a base of BaseVisible candles across the plot, and pan
// shifts content right in pixels, revealing older candles.
//
// Gesture input is recorded as a proposed transform. Commit clamps it against
// the current candle count and publishes it as the committed transform that
// every render uses.
package viewport

import (
	"math"
)

// Default zoom bounds and the candle count shown at zoom 1.
const (
	DefaultMinZoom     = 0.5
	DefaultMaxZoom     = 3.0
	DefaultBaseVisible = 100
)

// Transform is the zoom/pan pair applied to a frame.
type Transform struct {
	Zoom float64 `json:"zoom"`
	Pan  float64 `json:"pan"` // pixels; 0 keeps the newest candle at the right edge
}

// Identity is zoom 1 with no pan.
var Identity = Transform{Zoom: 1}

// Config bounds the transform.
type Config struct {
	MinZoom     float64 `yaml:"min_zoom"`
	MaxZoom     float64 `yaml:"max_zoom"`
	BaseVisible int     `yaml:"base_visible"`
}

// DefaultConfig returns zoom bounds [0.5, 3] over a 100-candle base.
func DefaultConfig() Config {
	return Config{MinZoom: DefaultMinZoom, MaxZoom: DefaultMaxZoom, BaseVisible: DefaultBaseVisible}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MinZoom <= 0 {
		c.MinZoom = d.MinZoom
	}
	if c.MaxZoom < c.MinZoom {
		c.MaxZoom = math.Max(d.MaxZoom, c.MinZoom)
	}
	if c.BaseVisible <= 0 {
		c.BaseVisible = d.BaseVisible
	}
	return c
}

// Viewport holds the proposed and committed transforms for one chart.
// Not safe for concurrent use; the owning session locks.
type Viewport struct {
	cfg       Config
	width     float64
	height    float64
	proposed  Transform
	committed Transform
	pending   bool
}

// New creates a viewport of the given pixel size.
func New(cfg Config, width, height float64) *Viewport {
	return &Viewport{
		cfg:       cfg.normalized(),
		width:     width,
		height:    height,
		proposed:  Identity,
		committed: Identity,
	}
}

func (v *Viewport) Config() Config           { return v.cfg }
func (v *Viewport) Size() (float64, float64) { return v.width, v.height }
func (v *Viewport) Committed() Transform     { return v.committed }
func (v *Viewport) Proposed() Transform      { return v.proposed }

// Pending reports whether a proposal is waiting for Commit.
func (v *Viewport) Pending() bool { return v.pending }

// Resize changes the plot size, e.g. on an orientation change.
func (v *Viewport) Resize(width, height float64) {
	v.width, v.height = width, height
	v.pending = true
}

// SetZoom proposes an absolute zoom.
func (v *Viewport) SetZoom(z float64) {
	if math.IsNaN(z) || z <= 0 {
		return
	}
	v.proposed.Zoom = z
	v.pending = true
}

// ZoomBy proposes multiplying the zoom by factor (pinch delta).
func (v *Viewport) ZoomBy(factor float64) {
	if math.IsNaN(factor) || factor <= 0 {
		return
	}
	v.proposed.Zoom *= factor
	v.pending = true
}

// PanBy proposes shifting content by dx pixels; positive reveals older candles.
func (v *Viewport) PanBy(dx float64) {
	if math.IsNaN(dx) || math.IsInf(dx, 0) {
		return
	}
	v.proposed.Pan += dx
	v.pending = true
}

// Reset snaps both transforms back to Identity.
func (v *Viewport) Reset() {
	v.proposed = Identity
	v.committed = Identity
	v.pending = false
}

// Commit clamps the proposal for n candles and publishes it.
func (v *Viewport) Commit(n int) Transform {
	t := Clamp(v.proposed, n, v.width, v.cfg)
	v.proposed = t
	v.committed = t
	v.pending = false
	return t
}

// Layout returns the committed geometry for n candles.
func (v *Viewport) Layout(n int) Layout {
	return NewLayout(n, v.width, v.height, v.committed, v.cfg.BaseVisible)
}

// ZoomBounds returns the zoom range usable with n candles: at least
// min(2, n) candles must stay visible. That cap wins over MinZoom when the
// two disagree.
func ZoomBounds(n int, cfg Config) (lo, hi float64) {
	cfg = cfg.normalized()
	lo, hi = cfg.MinZoom, cfg.MaxZoom
	if n <= 0 {
		return lo, hi
	}
	minVisible := 2
	if n < minVisible {
		minVisible = n
	}
	capZoom := float64(baseCount(n, cfg.BaseVisible)) / float64(minVisible)
	if capZoom < hi {
		hi = capZoom
		lo = math.Min(lo, hi)
	}
	return lo, hi
}

// Clamp bounds zoom to ZoomBounds and pan so the visible range stays inside
// [0, n) with the newest candle no further left than the right edge.
func Clamp(t Transform, n int, width float64, cfg Config) Transform {
	lo, hi := ZoomBounds(n, cfg)
	if math.IsNaN(t.Zoom) || t.Zoom <= 0 {
		t.Zoom = 1
	}
	t.Zoom = math.Min(math.Max(t.Zoom, lo), hi)

	slot := SlotWidth(n, width, t.Zoom, cfg.normalized().BaseVisible)
	maxPan := math.Max(0, float64(n)*slot-width)
	if math.IsNaN(t.Pan) {
		t.Pan = 0
	}
	t.Pan = math.Min(math.Max(t.Pan, 0), maxPan)
	return t
}

// SlotWidth is the horizontal pixels allotted to one candle.
func SlotWidth(n int, width, zoom float64, base int) float64 {
	return width * zoom / float64(baseCount(n, base))
}

func baseCount(n, base int) int {
	if n > 0 && n < base {
		return n
	}
	return base
}
