package chart

import (
	"fmt"
	"math"

	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/viewport"
)

// ── Gestures ──
// Gestures only touch the proposed transform. The next snapshot (or
// EndGesture) clamps and commits it.

// SetZoom proposes an absolute zoom.
func (s *Session) SetZoom(z float64) {
	s.gesture(func(v *viewport.Viewport) { v.SetZoom(z) })
}

// ZoomBy multiplies the proposed zoom, e.g. 1.1 per wheel notch.
func (s *Session) ZoomBy(factor float64) {
	s.gesture(func(v *viewport.Viewport) { v.ZoomBy(factor) })
}

// Pan shifts the proposed pan by dx pixels; positive reveals older candles.
func (s *Session) Pan(dx float64) {
	s.gesture(func(v *viewport.Viewport) { v.PanBy(dx) })
}

// EndGesture commits the proposal immediately and returns the clamped result.
func (s *Session) EndGesture() viewport.Transform {
	s.mu.Lock()
	t := s.vp.Commit(s.series.Len())
	s.mu.Unlock()
	s.markDirty()
	return t
}

// ResetViewport returns to zoom 1 anchored on the newest candle.
func (s *Session) ResetViewport() {
	s.gesture(func(v *viewport.Viewport) { v.Reset() })
}

// Resize changes the plot size.
func (s *Session) Resize(width, height float64) error {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return fmt.Errorf("chart: invalid size %vx%v", width, height)
	}
	s.gesture(func(v *viewport.Viewport) { v.Resize(width, height) })
	return nil
}

// Transform returns the committed and proposed transforms.
func (s *Session) Transform() (committed, proposed viewport.Transform) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vp.Committed(), s.vp.Proposed()
}

func (s *Session) gesture(fn func(v *viewport.Viewport)) {
	s.mu.Lock()
	fn(s.vp)
	s.mu.Unlock()
	s.markDirty()
}

// ── Queries ──

// geometry resolves the committed layout, visible range and price scale.
// Caller holds s.mu.
func (s *Session) geometry() (viewport.Layout, int, int, viewport.PriceScale, bool) {
	n := s.series.Len()
	layout := s.vp.Layout(n)
	first, end := layout.VisibleRange()
	low, high, ok := s.series.Window(end-first, end).PriceRange()
	if !ok {
		return layout, first, end, viewport.PriceScale{}, false
	}
	return layout, first, end, viewport.NewPriceScale(low, high), true
}

// QueryPriceAt maps a y pixel to a price on the committed scale. False when
// no candles are visible.
func (s *Session) QueryPriceAt(y float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layout, _, _, scale, ok := s.geometry()
	if !ok {
		return 0, false
	}
	return scale.YToPrice(y, layout.Height), true
}

// QueryCandleAt returns the candle under an x pixel and its series index.
func (s *Session) QueryCandleAt(x float64) (model.Candle, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layout, first, end, _, _ := s.geometry()
	i, ok := layout.XToIndex(x)
	if !ok || i < first || i >= end {
		return model.Candle{}, -1, false
	}
	return s.series.At(i), i, true
}

// SetPointer places the crosshair.
func (s *Session) SetPointer(x, y float64) {
	s.mu.Lock()
	s.pointer = &render.Point{X: x, Y: y}
	s.mu.Unlock()
	s.markDirty()
}

// ClearPointer hides the crosshair.
func (s *Session) ClearPointer() {
	s.mu.Lock()
	had := s.pointer != nil
	s.pointer = nil
	s.mu.Unlock()
	if had {
		s.markDirty()
	}
}

// ── Annotations ──

// SetOrders replaces the displayed order lines wholesale.
func (s *Session) SetOrders(orders []model.OrderAnnotation) {
	cp := make([]model.OrderAnnotation, len(orders))
	for i, o := range orders {
		cp[i] = o
		if o.StopLoss != nil {
			v := *o.StopLoss
			cp[i].StopLoss = &v
		}
		if o.TakeProfit != nil {
			v := *o.TakeProfit
			cp[i].TakeProfit = &v
		}
	}
	s.mu.Lock()
	s.orders = cp
	s.mu.Unlock()
	s.markDirty()
}

// Orders returns the current order lines.
func (s *Session) Orders() []model.OrderAnnotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OrderAnnotation(nil), s.orders...)
}

// SetSignals replaces the displayed bot markers wholesale.
func (s *Session) SetSignals(signals []model.Signal) {
	cp := append([]model.Signal(nil), signals...)
	s.mu.Lock()
	for i := range cp {
		if cp[i].Time.IsZero() && cp[i].Index >= 0 && cp[i].Index < s.series.Len() {
			cp[i].Time = s.series.At(cp[i].Index).OpenTime
		}
	}
	s.signals = cp
	s.mu.Unlock()
	s.markDirty()
}

// Signals returns the current markers.
func (s *Session) Signals() []model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Signal(nil), s.signals...)
}

// ── Style ──

// SetStyle replaces palette, toggles and axis settings.
func (s *Session) SetStyle(st render.Style) {
	s.mu.Lock()
	s.style = st
	s.mu.Unlock()
	s.markDirty()
}

// SetPalette switches to a built-in color scheme.
func (s *Session) SetPalette(name string) error {
	p, err := render.LookupPalette(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.style.Palette = p
	s.mu.Unlock()
	s.markDirty()
	return nil
}

// SetLayers changes the layer toggles.
func (s *Session) SetLayers(l render.Layers) {
	s.mu.Lock()
	s.style.Layers = l
	s.mu.Unlock()
	s.markDirty()
}

// Style returns the current style.
func (s *Session) Style() render.Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}
