package indicator

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-chartv1/internal/model"
	"trading-chartv1/internal/series"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const sec = model.Timeframe(time.Second)

func history(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			OpenTime: time.Unix(int64(i), 0).UTC(),
			Open:     c, High: c, Low: c, Close: c, Closed: true,
		}
	}
	return out
}

func newWired(t *testing.T, configs []Config, closes ...float64) (*series.Series, *Engine) {
	t.Helper()
	s := series.New("TEST", sec, series.Options{Logger: quiet})
	_, err := s.AppendHistorical(history(closes...))
	require.NoError(t, err)
	e, err := NewEngine(s, configs, quiet)
	require.NoError(t, err)
	s.Observe(e)
	return s, e
}

func values(t *testing.T, e *Engine, name string) []Value {
	t.Helper()
	for _, l := range e.Lines() {
		if l.Name == name {
			return l.Values
		}
	}
	t.Fatalf("line %s not found", name)
	return nil
}

func TestEngine_SMA3OverKnownCloses(t *testing.T) {
	_, e := newWired(t, []Config{{Type: "SMA", Period: 3}}, 10, 20, 30, 40)

	got := values(t, e, "SMA_3")
	require.Len(t, got, 4)
	assert.False(t, got[0].OK)
	assert.False(t, got[1].OK)
	assert.Equal(t, Value{V: 20, OK: true}, got[2])
	assert.Equal(t, Value{V: 30, OK: true}, got[3])
}

func TestEngine_EMASeedEqualsSMA(t *testing.T) {
	_, e := newWired(t, []Config{{Type: "EMA", Period: 3}, {Type: "SMA", Period: 3}}, 10, 20, 30, 40)

	ema := values(t, e, "EMA_3")
	sma := values(t, e, "SMA_3")
	assert.False(t, ema[1].OK)
	assert.True(t, ema[2].OK)
	assert.InDelta(t, sma[2].V, ema[2].V, 1e-12)
	assert.InDelta(t, 40*0.5+20*0.5, ema[3].V, 1e-12)
}

func TestEngine_ProvisionalValueOverwrittenAtClose(t *testing.T) {
	s, e := newWired(t, []Config{{Type: "SMA", Period: 3}}, 10, 20, 30)

	s.ApplyTick(40, 1, time.Unix(3, 0))
	require.Equal(t, 4, e.Len())
	v, _ := e.Value("SMA_3", 3)
	assert.InDelta(t, 30, v.V, 1e-12)

	s.ApplyTick(43, 1, time.Unix(3, 500_000_000))
	require.Equal(t, 4, e.Len(), "tick on open candle must not append")
	v, _ = e.Value("SMA_3", 3)
	assert.InDelta(t, 31, v.V, 1e-12)

	// Rollover finalizes index 3 and opens index 4.
	s.ApplyTick(50, 1, time.Unix(4, 0))
	require.Equal(t, 5, e.Len())
	v, _ = e.Value("SMA_3", 3)
	assert.InDelta(t, 31, v.V, 1e-12)
	v, _ = e.Value("SMA_3", 4)
	assert.InDelta(t, (30+43+50)/3.0, v.V, 1e-12)
}

func TestEngine_LengthInvariantUnderRandomFeed(t *testing.T) {
	s, e := newWired(t, []Config{{Type: "SMA", Period: 5}, {Type: "EMA", Period: 8}, {Type: "RSI", Period: 14}})
	rng := rand.New(rand.NewSource(3))
	ts := time.Unix(1_700_000_000, 0)
	price := 100.0

	for i := 0; i < 2000; i++ {
		ts = ts.Add(time.Duration(rng.Intn(700)) * time.Millisecond)
		price += rng.Float64() - 0.5
		s.ApplyTick(price, 1, ts)
		for _, l := range e.Lines() {
			if len(l.Values) != s.Len() {
				t.Fatalf("tick %d: %s has %d values, series has %d", i, l.Name, len(l.Values), s.Len())
			}
		}
	}

	// Incremental results equal a from-scratch computation.
	fresh, err := NewEngine(s, e.Configs(), quiet)
	require.NoError(t, err)
	for i, l := range e.Lines() {
		want := fresh.Lines()[i].Values
		for j := range want {
			assert.InDelta(t, want[j].V, l.Values[j].V, 1e-9, "%s[%d]", l.Name, j)
			assert.Equal(t, want[j].OK, l.Values[j].OK, "%s[%d]", l.Name, j)
		}
	}
}

func TestEngine_HistoryPrependRebuilds(t *testing.T) {
	s := series.New("TEST", sec, series.Options{Logger: quiet})
	block := history(10, 20, 30, 40, 50)
	_, err := s.AppendHistorical(block[3:])
	require.NoError(t, err)
	e, err := NewEngine(s, []Config{{Type: "SMA", Period: 3}}, quiet)
	require.NoError(t, err)
	s.Observe(e)

	assert.False(t, values(t, e, "SMA_3")[1].OK)

	_, err = s.AppendHistorical(block[:3])
	require.NoError(t, err)
	got := values(t, e, "SMA_3")
	require.Len(t, got, 5)
	assert.Equal(t, Value{V: 30, OK: true}, got[3])
	assert.Equal(t, Value{V: 40, OK: true}, got[4])
}

func TestEngine_SetConfigsKeepsUnchangedLines(t *testing.T) {
	_, e := newWired(t, []Config{{Type: "SMA", Period: 2}, {Type: "EMA", Period: 2}}, 1, 2, 3, 4)

	preserved, created, err := e.SetConfigs([]Config{{Type: "SMA", Period: 2}, {Type: "SMA", Period: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, preserved)
	assert.Equal(t, 1, created)
	assert.Equal(t, []Config{{Type: "SMA", Period: 2}, {Type: "SMA", Period: 3}}, e.Configs())
	assert.Equal(t, Value{V: 3, OK: true}, values(t, e, "SMA_3")[3])

	_, _, err = e.SetConfigs([]Config{{Type: "WMA", Period: 2}})
	assert.Error(t, err)
	assert.Len(t, e.Configs(), 2, "failed reload must leave the set untouched")
}

func TestEngine_AddRemove(t *testing.T) {
	_, e := newWired(t, nil, 1, 2, 3)

	require.NoError(t, e.Add(Config{Type: "SMA", Period: 2}))
	assert.Equal(t, Value{V: 2.5, OK: true}, values(t, e, "SMA_2")[2])
	assert.Error(t, e.Add(Config{Type: "SMA", Period: 2}), "duplicate")
	assert.Error(t, e.Add(Config{Type: "SMA", Period: 0}))

	require.NoError(t, e.Remove("SMA_2"))
	assert.Empty(t, e.Lines())
	assert.Error(t, e.Remove("SMA_2"))
	assert.Equal(t, 3, e.Len())
}

func TestEngine_Window(t *testing.T) {
	_, e := newWired(t, []Config{{Type: "SMA", Period: 2}}, 1, 2, 3, 4, 5)

	w := e.Window(2, 4)
	require.Len(t, w, 1)
	assert.Equal(t, 2, w[0].First)
	assert.Equal(t, []Value{{V: 2.5, OK: true}, {V: 3.5, OK: true}}, w[0].Values)
	assert.True(t, w[0].Overlay)

	w = e.Window(-3, 99)
	assert.Len(t, w[0].Values, 5)
}

func TestParseSpecs(t *testing.T) {
	got := ParseSpecs("sma:20, EMA:50,bogus,RSI:x,RSI:14")
	assert.Equal(t, []Config{{Type: "SMA", Period: 20}, {Type: "EMA", Period: 50}, {Type: "RSI", Period: 14}}, got)
	assert.Equal(t, DefaultConfigs(), ParseSpecs(""))
	assert.Equal(t, DefaultConfigs(), ParseSpecs("nothing"))
	assert.NoError(t, Validate(got))
	assert.Error(t, Validate([]Config{{Type: "SMA", Period: 3}, {Type: "SMA", Period: 3}}))
	assert.False(t, Overlay("RSI"))
}
