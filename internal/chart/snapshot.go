package chart

import (
	"fmt"

	"trading-chartv1/internal/markethours"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/timeframe"
	"trading-chartv1/internal/viewport"
)

// Snapshot commits the pending viewport transform and copies everything one
// render needs. The returned frame shares nothing with the session.
func (s *Session) Snapshot() *render.Frame {
	state, _ := s.LoadState()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.series.Len()
	s.vp.Commit(n)
	layout, first, end, scale, ok := s.geometry()
	if !ok {
		scale = viewport.NewPriceScale(0, 0)
	}
	s.seq++

	view := s.series.Window(end-first, end)
	f := &render.Frame{
		Seq:        s.seq,
		Symbol:     s.series.Symbol(),
		Timeframe:  s.series.Timeframe(),
		Digits:     s.instrument.Digits(),
		Status:     s.status(state),
		Layout:     layout,
		Scale:      scale,
		First:      view.First(),
		Candles:    view.Copy(),
		MaxVolume:  view.MaxVolume(),
		Indicators: s.engine.Window(first, end),
		Orders:     s.copyOrders(),
		Signals:    s.resolveSignals(first, end),
		Style:      s.style,
		CreatedAt:  s.opts.Now(),
	}
	if s.pointer != nil {
		f.Crosshair = s.crosshair(f)
	}
	return f
}

func (s *Session) copyOrders() []model.OrderAnnotation {
	if len(s.orders) == 0 {
		return nil
	}
	return append([]model.OrderAnnotation(nil), s.orders...)
}

// resolveSignals anchors every marker to a series index and keeps the
// visible ones.
func (s *Session) resolveSignals(first, end int) []model.Signal {
	var out []model.Signal
	for _, sig := range s.signals {
		if !sig.Time.IsZero() {
			i, ok := s.series.IndexOf(sig.Time)
			if !ok {
				continue
			}
			sig.Index = i
		}
		if sig.Index < first || sig.Index >= end {
			continue
		}
		out = append(out, sig)
	}
	return out
}

func (s *Session) crosshair(f *render.Frame) *render.Crosshair {
	p := *s.pointer
	ch := &render.Crosshair{X: p.X, Y: p.Y, Index: -1}
	if len(f.Candles) > 0 {
		ch.Price = f.Scale.YToPrice(p.Y, f.Layout.Height)
	}
	if i, ok := f.Layout.XToIndex(p.X); ok && i >= f.First && i < f.First+len(f.Candles) {
		c := f.Candles[i-f.First]
		ch.Index = i
		ch.Candle = &c
	}
	return ch
}

// status is the header line: instrument, timeframe, countdown and market state.
func (s *Session) status(state timeframe.State) string {
	now := s.opts.Now()
	tf := s.series.Timeframe()
	line := fmt.Sprintf("%s %s", s.instrument.Symbol, tf)
	if c, ok := s.series.Last(); ok && !c.Closed {
		line += " " + model.FormatCountdown(tf.Countdown(now))
	}
	line += " | " + markethours.StatusString(s.series.Schedule(), now)
	if state != timeframe.StateReady && state != timeframe.StateIdle {
		line += " | " + state.String()
	}
	return line
}
