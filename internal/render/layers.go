package render

import (
	"fmt"
	"math"

	"trading-chartv1/internal/format"
	"trading-chartv1/internal/model"
)

// ── Grid ──

// GridLayer draws horizontal and vertical guides plus the price axis labels.
type GridLayer struct{}

func (GridLayer) Name() string          { return "grid" }
func (GridLayer) Enabled(f *Frame) bool { return f.Style.Layers.Grid }

func (GridLayer) Draw(f *Frame, s Surface) error {
	w, h := f.Layout.Width, f.Layout.Height
	st := Stroke{Color: f.Style.Palette.Grid.WithAlpha(0.3), Width: 0.5}

	rows, cols := f.Style.GridRows, f.Style.GridCols
	for i := 1; i < rows; i++ {
		y := h * float64(i) / float64(rows)
		s.Line(0, y, w, y, st)
	}
	for i := 1; i < cols; i++ {
		x := w * float64(i) / float64(cols)
		s.Line(x, 0, x, h, st)
	}

	txt := TextStyle{Color: f.Style.Palette.Text, Size: f.Style.FontSize, Align: "right"}
	for _, p := range f.Scale.Levels(f.Style.PriceLabels) {
		s.Text(w-2, f.Y(p), format.Price(p, f.Digits), txt)
	}
	return nil
}

// ── Candles ──

// CandleLayer draws wicks and bodies; bullish when close >= open.
type CandleLayer struct{}

func (CandleLayer) Name() string        { return "candles" }
func (CandleLayer) Enabled(*Frame) bool { return true }

func (CandleLayer) Draw(f *Frame, s Surface) error {
	body := f.Layout.BodyWidth()
	for k, c := range f.Candles {
		col := f.Style.Palette.Bear
		if c.Bullish() {
			col = f.Style.Palette.Bull
		}
		x := f.X(k)
		s.Line(x, f.Y(c.High), x, f.Y(c.Low), Stroke{Color: col, Width: 1})

		top, bottom := f.Y(c.BodyTop()), f.Y(c.BodyBottom())
		s.Rect(x-body/2, top, body, math.Max(1, bottom-top), col)
	}
	return nil
}

// ── Volume ──

// VolumeLayer draws bars along the bottom band scaled to the largest visible volume.
type VolumeLayer struct{}

func (VolumeLayer) Name() string {
	return "volume"
}

func (VolumeLayer) Enabled(f *Frame) bool {
	return f.Style.Layers.Volume && f.Style.VolumeHeight > 0
}

func (VolumeLayer) Draw(f *Frame, s Surface) error {
	maxVol := f.MaxVolume
	if maxVol <= 0 {
		return nil
	}
	band := math.Min(f.Style.VolumeHeight, f.Layout.Height)
	body := f.Layout.BodyWidth()
	for k, c := range f.Candles {
		hgt := band * c.Volume / maxVol
		col := f.Style.Palette.Bear.WithAlpha(0.6)
		if c.Bullish() {
			col = f.Style.Palette.Bull.WithAlpha(0.6)
		}
		s.Rect(f.X(k)-body/2, f.Layout.Height-hgt, body, hgt, col)
	}
	return nil
}

// ── Indicators ──

// IndicatorLayer draws overlay indicators on the price scale and
// oscillators (0-100) in a band above the volume bars.
type IndicatorLayer struct{}

func (IndicatorLayer) Name() string          { return "indicators" }
func (IndicatorLayer) Enabled(f *Frame) bool { return len(f.Indicators) > 0 }

func (IndicatorLayer) Draw(f *Frame, s Surface) error {
	if err := f.Validate(); err != nil {
		return err
	}
	bandH := f.Layout.Height * 0.2
	bandBottom := f.Layout.Height - f.Style.VolumeHeight
	if !f.Style.Layers.Volume {
		bandBottom = f.Layout.Height
	}

	for i, l := range f.Indicators {
		st := Stroke{Color: f.Style.Palette.LineColor(i), Width: 1.5}
		y := f.Y
		if !l.Overlay {
			y = func(v float64) float64 { return bandBottom - bandH*v/100 }
		}
		var pts []Point
		for k, v := range l.Values {
			if !v.OK {
				if len(pts) > 1 {
					s.Polyline(pts, st)
				}
				pts = nil
				continue
			}
			pts = append(pts, Point{X: f.X(k), Y: y(v.V)})
		}
		if len(pts) > 1 {
			s.Polyline(pts, st)
		}
	}
	return nil
}

// ── Orders ──

// OrderLayer draws dashed entry lines and solid stop-loss / take-profit lines.
type OrderLayer struct{}

func (OrderLayer) Name() string { return "orders" }

func (OrderLayer) Enabled(f *Frame) bool { return f.Style.Layers.Orders && len(f.Orders) > 0 }

func (OrderLayer) Draw(f *Frame, s Surface) error {
	p := f.Style.Palette
	w := f.Layout.Width
	txt := TextStyle{Size: f.Style.FontSize, Align: "left"}

	var bad []string
	for _, o := range f.Orders {
		if !(o.OpenPrice > 0) {
			bad = append(bad, o.ID)
			continue
		}
		y := f.Y(o.OpenPrice)
		s.Line(0, y, w, y, Stroke{Color: p.Entry, Width: 1, Dash: []float64{5, 3}})
		txt.Color = p.Entry
		s.Text(4, y-2, orderLabel(o, f.Digits), txt)

		if o.StopLoss != nil {
			y := f.Y(*o.StopLoss)
			s.Line(0, y, w, y, Stroke{Color: p.StopLoss, Width: 1})
			txt.Color = p.StopLoss
			s.Text(4, y-2, "SL "+format.Price(*o.StopLoss, f.Digits), txt)
		}
		if o.TakeProfit != nil {
			y := f.Y(*o.TakeProfit)
			s.Line(0, y, w, y, Stroke{Color: p.TakeProfit, Width: 1})
			txt.Color = p.TakeProfit
			s.Text(4, y-2, "TP "+format.Price(*o.TakeProfit, f.Digits), txt)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("orders without open price: %v", bad)
	}
	return nil
}

func orderLabel(o model.OrderAnnotation, digits int) string {
	l := string(o.Direction) + " " + format.Price(o.OpenPrice, digits)
	if o.Label != "" {
		l += " " + o.Label
	}
	return l
}

// ── Signals ──

// SignalLayer draws bot markers at the signal price, nudged below it for buys
// and above it for sells. A zero price falls back to the candle's low or high.
// Signals with confidence above 0.8 get a percentage badge.
type SignalLayer struct{}

// HighConfidence is the threshold for the confidence badge.
const HighConfidence = 0.8

func (SignalLayer) Name() string { return "signals" }

func (SignalLayer) Enabled(f *Frame) bool { return f.Style.Layers.Signals && len(f.Signals) > 0 }

func (SignalLayer) Draw(f *Frame, s Surface) error {
	p := f.Style.Palette
	r := SignalRadius(f)
	for _, sig := range f.Signals {
		k := sig.Index - f.First
		if k < 0 || k >= len(f.Candles) {
			continue // off screen
		}
		x, y := f.X(k), SignalY(f, sig)
		col, ty := p.Bull, y+2*r+f.Style.FontSize
		if sig.Direction == model.Sell {
			col, ty = p.Bear, y-2*r
		}
		s.Marker(x, y, r, col)
		if sig.Label != "" {
			s.Text(x, ty, sig.Label, TextStyle{Color: col, Size: f.Style.FontSize, Align: "center"})
		}
		if sig.Confidence > HighConfidence {
			s.Text(x+2*r, y, format.Percent(sig.Confidence),
				TextStyle{Color: p.Text, Size: f.Style.FontSize * 0.8, Align: "left"})
		}
	}
	return nil
}

// SignalRadius is the marker radius for the frame's slot width.
func SignalRadius(f *Frame) float64 { return math.Max(3, f.Layout.BodyWidth()/2) }

// SignalY is the marker centre: priceToY of the anchor, offset 2r down for
// buys and up for sells.
func SignalY(f *Frame, sig model.Signal) float64 {
	off := 2 * SignalRadius(f)
	if sig.Direction == model.Sell {
		off = -off
	}
	anchor := sig.Price
	if anchor == 0 {
		c := f.Candles[sig.Index-f.First]
		anchor = c.Low
		if sig.Direction == model.Sell {
			anchor = c.High
		}
	}
	return f.Y(anchor) + off
}

// ── Crosshair ──

// CrosshairLayer draws the pointer lines and price readout. Always topmost.
type CrosshairLayer struct{}

func (CrosshairLayer) Name() string { return "crosshair" }

func (CrosshairLayer) Enabled(f *Frame) bool { return f.Style.Layers.Crosshair && f.Crosshair != nil }

func (CrosshairLayer) Draw(f *Frame, s Surface) error {
	ch := f.Crosshair
	st := Stroke{Color: f.Style.Palette.Crosshair, Width: 1, Dash: []float64{3, 3}}
	s.Line(ch.X, 0, ch.X, f.Layout.Height, st)
	s.Line(0, ch.Y, f.Layout.Width, ch.Y, st)

	label := format.Price(ch.Price, f.Digits)
	if ch.Candle != nil {
		c := ch.Candle
		label = fmt.Sprintf("%s  O %s H %s L %s C %s V %s", label,
			format.Price(c.Open, f.Digits), format.Price(c.High, f.Digits),
			format.Price(c.Low, f.Digits), format.Price(c.Close, f.Digits),
			format.Volume(c.Volume))
	}
	s.Text(f.Layout.Width-2, ch.Y-2, label,
		TextStyle{Color: f.Style.Palette.Crosshair, Size: f.Style.FontSize, Align: "right"})
	return nil
}
