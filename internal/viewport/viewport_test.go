package viewport

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRoundTrip(t *testing.T) {
	scale := NewPriceScale(1.0712, 1.0893)
	const h = 480.0
	for _, p := range []float64{1.0712, 1.075, 1.08, 1.0893} {
		y := PriceToY(p, scale, h)
		assert.InDelta(t, p, scale.YToPrice(y, h), 1e-12, "price %g", p)
	}
	assert.InDelta(t, 0, scale.PriceToY(1.0893, h), 1e-9, "max at top")
	assert.InDelta(t, h, scale.PriceToY(1.0712, h), 1e-9, "min at bottom")
}

func TestDegenerateRange(t *testing.T) {
	scale := NewPriceScale(100, 100)
	require.True(t, scale.Degenerate)
	assert.Greater(t, scale.Range(), 0.0)
	assert.InDelta(t, 50, scale.PriceToY(100, 100), 1e-9, "flat price sits mid-plot")

	zero := NewPriceScale(0, 0)
	assert.Greater(t, zero.Range(), 0.0)

	swapped := NewPriceScale(5, 3)
	assert.Equal(t, PriceScale{Min: 3, Max: 5}, swapped)
}

func TestLevels(t *testing.T) {
	got := PriceScale{Min: 0, Max: 10}.Levels(6)
	assert.Equal(t, []float64{10, 8, 6, 4, 2, 0}, got)
}

func TestIndexXRoundTrip(t *testing.T) {
	l := NewLayout(250, 1000, 500, Transform{Zoom: 1.7, Pan: 123}, DefaultBaseVisible)
	first, end := l.VisibleRange()
	require.Less(t, first, end)
	for i := first; i < end; i++ {
		got, ok := l.XToIndex(l.IndexToX(i))
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
	_, ok := l.XToIndex(l.IndexToX(l.N-1) + l.Slot)
	assert.False(t, ok, "right of newest candle")
}

func TestRightAnchoredDefault(t *testing.T) {
	l := NewLayout(300, 1000, 500, Identity, DefaultBaseVisible)
	assert.InDelta(t, 10.0, l.Slot, 1e-12)
	assert.InDelta(t, 995.0, l.IndexToX(299), 1e-9)
	first, end := l.VisibleRange()
	assert.Equal(t, 200, first)
	assert.Equal(t, 300, end)

	short := NewLayout(40, 1000, 500, Identity, DefaultBaseVisible)
	first, end = short.VisibleRange()
	assert.Equal(t, 0, first)
	assert.Equal(t, 40, end)
}

func TestZoomClamp(t *testing.T) {
	v := New(DefaultConfig(), 1000, 500)

	v.ZoomBy(100)
	assert.Equal(t, DefaultMaxZoom, v.Commit(500).Zoom)

	v.SetZoom(0.01)
	assert.Equal(t, DefaultMinZoom, v.Commit(500).Zoom)

	// Four candles: at most 4/2 = 2x so two stay visible.
	v.SetZoom(3)
	assert.Equal(t, 2.0, v.Commit(4).Zoom)

	v.SetZoom(-1)
	assert.False(t, v.Pending(), "rejected input leaves no proposal")
}

func TestTwoCandlesStayVisibleWithTightConfig(t *testing.T) {
	cfg := Config{MinZoom: 1, MaxZoom: 3, BaseVisible: 1}
	lo, hi := ZoomBounds(100, cfg)
	assert.Equal(t, 0.5, hi, "one base candle allows at most 1/2 zoom")
	assert.LessOrEqual(t, lo, hi)

	v := New(cfg, 800, 400)
	v.SetZoom(3)
	assert.Equal(t, 0.5, v.Commit(100).Zoom)
	first, end := v.Layout(100).VisibleRange()
	assert.GreaterOrEqual(t, end-first, 2)
	assert.Equal(t, 100, end)
}

func TestPanClamp(t *testing.T) {
	v := New(DefaultConfig(), 1000, 500)

	v.PanBy(-50)
	assert.Equal(t, 0.0, v.Commit(300).Pan, "cannot pan past newest")

	v.PanBy(1e9)
	tr := v.Commit(300)
	assert.InDelta(t, 2000.0, tr.Pan, 1e-9, "300 candles at 10px minus the plot width")
	first, _ := v.Layout(300).VisibleRange()
	assert.Equal(t, 0, first)
}

func TestProposedVsCommitted(t *testing.T) {
	v := New(DefaultConfig(), 800, 400)
	v.ZoomBy(1.5)
	v.PanBy(40)

	assert.True(t, v.Pending())
	assert.Equal(t, Identity, v.Committed(), "gestures do not touch the committed transform")
	assert.Equal(t, Transform{Zoom: 1.5, Pan: 40}, v.Proposed())

	v.Commit(1000)
	assert.False(t, v.Pending())
	assert.Equal(t, Transform{Zoom: 1.5, Pan: 40}, v.Committed())

	v.Reset()
	assert.Equal(t, Identity, v.Committed())
	assert.Equal(t, Identity, v.Proposed())
}

func TestVisibleRangeAlwaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	v := New(DefaultConfig(), 900, 400)

	for step := 0; step < 20000; step++ {
		n := rng.Intn(400)
		switch rng.Intn(6) {
		case 0:
			v.ZoomBy(rng.Float64() * 10)
		case 1:
			v.SetZoom(DefaultMaxZoom * 10)
		case 2:
			v.PanBy((rng.Float64() - 0.5) * 1e5)
		case 3:
			v.PanBy(1e12)
		case 4:
			v.Resize(float64(100+rng.Intn(2000)), 400)
		case 5:
			v.SetZoom(1e-6)
		}
		v.Commit(n)

		first, end := v.Layout(n).VisibleRange()
		if first < 0 || end > n || first > end {
			t.Fatalf("step %d: range [%d,%d) outside [0,%d)", step, first, end, n)
		}
		want := 2
		if n < want {
			want = n
		}
		if end-first < want {
			t.Fatalf("step %d: only %d visible of %d (transform %+v)", step, end-first, n, v.Committed())
		}
	}
}
