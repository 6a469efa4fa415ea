package render

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-chartv1/internal/indicator"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/viewport"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testFrame(n int) *Frame {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	vals := make([]indicator.Value, n)
	for i := range candles {
		p := 1.10 + float64(i%5)*0.001
		candles[i] = model.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     p, High: p + 0.002, Low: p - 0.002, Close: p + 0.0005,
			Volume: float64(10 + i), Closed: i < n-1,
		}
		vals[i] = indicator.Value{V: p, OK: i >= 2}
	}
	sl, tp := 1.095, 1.12
	return &Frame{
		Symbol:    "EURUSD",
		Timeframe: model.M1,
		Digits:    5,
		Layout:    viewport.NewLayout(n, 800, 400, viewport.Identity, 100),
		Scale:     viewport.NewPriceScale(1.097, 1.107),
		Candles:   candles,
		MaxVolume: float64(10 + n - 1),
		Indicators: []indicator.Line{{
			Name: "SMA_3", Config: indicator.Config{Type: "SMA", Period: 3}, Overlay: true, Values: vals,
		}},
		Orders: []model.OrderAnnotation{{
			ID: "o1", Direction: model.Buy, OpenPrice: 1.1, StopLoss: &sl, TakeProfit: &tp,
		}},
		Signals: []model.Signal{
			{ID: "s1", Index: 3, Direction: model.Buy, Label: "long"},
			{ID: "s2", Index: 99, Direction: model.Sell}, // off screen
		},
		Crosshair: &Crosshair{X: 400, Y: 200, Price: 1.102, Index: 5},
		Style:     DefaultStyle(),
	}
}

func TestComposeZOrder(t *testing.T) {
	c := NewCompositor(quietLogger())
	dl := NewDisplayList(800, 400)

	require.NoError(t, c.Compose(testFrame(10), dl))
	assert.Equal(t,
		[]string{"background", "grid", "candles", "volume", "indicators", "orders", "signals", "crosshair"},
		dl.LayerOrder())
	assert.Equal(t, "crosshair", dl.Ops[len(dl.Ops)-1].Layer, "crosshair must be topmost")
}

func TestComposeCandleOps(t *testing.T) {
	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(testFrame(10), dl))

	ops := dl.ByLayer("candles")
	require.Len(t, ops, 20) // wick + body per candle
	for _, op := range ops {
		if op.Kind == "rect" {
			assert.GreaterOrEqual(t, op.H, 1.0)
		}
	}
}

func TestComposeIndicatorBreaksOnWarmup(t *testing.T) {
	f := testFrame(10)
	f.Indicators[0].Values[5].OK = false

	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	ops := dl.ByLayer("indicators")
	require.Len(t, ops, 2)
	assert.Len(t, ops[0].Points, 3) // 2,3,4
	assert.Len(t, ops[1].Points, 4) // 6..9
}

func TestComposeFailingLayerDoesNotBlockOthers(t *testing.T) {
	f := testFrame(10)
	f.Indicators[0].Values = f.Indicators[0].Values[:4] // misaligned
	f.Orders = append(f.Orders, model.OrderAnnotation{ID: "bad"})

	var failed []string
	c := NewCompositor(quietLogger())
	c.OnLayerError = func(layer string, _ error) { failed = append(failed, layer) }

	dl := NewDisplayList(800, 400)
	err := c.Compose(f, dl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indicators")
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"indicators", "orders"}, failed)

	assert.NotEmpty(t, dl.ByLayer("signals"))
	assert.NotEmpty(t, dl.ByLayer("crosshair"))
	assert.NotEmpty(t, dl.ByLayer("orders"), "valid orders still draw")
}

type panicLayer struct{}

func (panicLayer) Name() string        { return "boom" }
func (panicLayer) Enabled(*Frame) bool { return true }
func (panicLayer) Draw(*Frame, Surface) error {
	panic("draw failed")
}

func TestComposeRecoversPanics(t *testing.T) {
	c := NewCompositor(quietLogger())
	c.layers = append([]Layer{panicLayer{}}, c.layers...)

	dl := NewDisplayList(800, 400)
	err := c.Compose(testFrame(5), dl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom: panic")
	assert.NotEmpty(t, dl.ByLayer("crosshair"))
}

func TestLayerToggles(t *testing.T) {
	f := testFrame(10)
	f.Style.Layers = Layers{}

	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))
	assert.Equal(t, []string{"background", "candles", "indicators"}, dl.LayerOrder())
}

func signalMarkers(dl *DisplayList) []Op {
	var markers []Op
	for _, op := range dl.ByLayer("signals") {
		if op.Kind == "marker" {
			markers = append(markers, op)
		}
	}
	return markers
}

func TestSignalPlacement(t *testing.T) {
	f := testFrame(10)
	f.Signals = []model.Signal{
		{ID: "b", Index: 3, Direction: model.Buy, Price: 1.105},
		{ID: "s", Index: 4, Direction: model.Sell, Price: 1.099},
	}
	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	markers := signalMarkers(dl)
	require.Len(t, markers, 2)
	r := markers[0].R
	assert.Equal(t, SignalRadius(f), r)
	assert.Equal(t, f.X(3), markers[0].Points[0].X)
	assert.InDelta(t, f.Y(1.105)+2*r, markers[0].Points[0].Y, 1e-9, "buy sits just below its price")
	assert.Equal(t, f.X(4), markers[1].Points[0].X)
	assert.InDelta(t, f.Y(1.099)-2*r, markers[1].Points[0].Y, 1e-9, "sell sits just above its price")
}

func TestSignalWithoutPriceUsesCandle(t *testing.T) {
	f := testFrame(10)
	f.Signals = []model.Signal{
		{ID: "b", Index: 2, Direction: model.Buy},
		{ID: "s", Index: 4, Direction: model.Sell},
	}
	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	markers := signalMarkers(dl)
	require.Len(t, markers, 2)
	assert.Greater(t, markers[0].Points[0].Y, f.Y(f.Candles[2].Low), "buy below low")
	assert.Less(t, markers[1].Points[0].Y, f.Y(f.Candles[4].High), "sell above high")
}

func TestSignalConfidenceBadge(t *testing.T) {
	f := testFrame(10)
	f.Signals = []model.Signal{
		{ID: "hi", Index: 2, Direction: model.Buy, Price: 1.1, Confidence: 0.92},
		{ID: "lo", Index: 4, Direction: model.Sell, Price: 1.1, Confidence: 0.8},
	}
	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	var texts []string
	for _, op := range dl.ByLayer("signals") {
		if op.Kind == "text" {
			texts = append(texts, op.Text)
		}
	}
	assert.Equal(t, []string{"92%"}, texts)
}

func TestVolumeBarsScaleToFrameMax(t *testing.T) {
	f := testFrame(10)
	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	bars := dl.ByLayer("volume")
	require.Len(t, bars, 10)
	assert.InDelta(t, f.Style.VolumeHeight, bars[9].H, 1e-9, "largest volume fills the band")

	f.MaxVolume = 0
	dl = NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))
	assert.Empty(t, dl.ByLayer("volume"))
}

func TestCrosshairReadoutShowsVolume(t *testing.T) {
	f := testFrame(10)
	c := f.Candles[5]
	c.Volume = 1520
	f.Crosshair.Candle = &c

	dl := NewDisplayList(800, 400)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, dl))

	var label string
	for _, op := range dl.ByLayer("crosshair") {
		if op.Kind == "text" {
			label = op.Text
		}
	}
	assert.Contains(t, label, "C 1.10050")
	assert.True(t, strings.HasSuffix(label, "V 1.52K"), label)
}

func TestDisplayListCopiesPolyline(t *testing.T) {
	dl := NewDisplayList(10, 10)
	pts := []Point{{1, 1}, {2, 2}}
	dl.Polyline(pts, Stroke{})
	pts[0].X = 9
	assert.Equal(t, 1.0, dl.Ops[0].Points[0].X)
}

func TestPalette(t *testing.T) {
	p, err := LookupPalette(" Neon ")
	require.NoError(t, err)
	assert.Equal(t, "neon", p.Name)
	assert.Equal(t, p.Lines[0], p.LineColor(len(p.Lines)))

	_, err = LookupPalette("sepia")
	assert.Error(t, err)
	assert.Contains(t, PaletteNames(), "professional")
}

func TestColorHex(t *testing.T) {
	c := Hex("#26a69a")
	assert.Equal(t, Color{R: 0x26, G: 0xa6, B: 0x9a, A: 255}, c)
	assert.Equal(t, "#26a69aff", c.String())
	assert.Equal(t, uint8(127), c.WithAlpha(0.5).A)

	var back Color
	require.NoError(t, back.UnmarshalText([]byte("#01020304")))
	assert.Equal(t, Color{1, 2, 3, 4}, back)
}

func TestPNGSurface(t *testing.T) {
	s, err := NewPNGSurface(400, 200)
	require.NoError(t, err)
	f := testFrame(20)
	f.Layout = viewport.NewLayout(20, 400, 200, viewport.Identity, 100)
	require.NoError(t, NewCompositor(quietLogger()).Compose(f, s))

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))
	assert.Equal(t, []byte("\x89PNG"), buf.Bytes()[:4])

	_, err = NewPNGSurface(0, 10)
	assert.Error(t, err)
}
