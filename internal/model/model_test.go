package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleValid(t *testing.T) {
	ts := time.Unix(0, 0).UTC()
	assert.True(t, Candle{OpenTime: ts, Open: 10, High: 12, Low: 9, Close: 11}.Valid())
	assert.False(t, Candle{OpenTime: ts, Open: 10, High: 10.5, Low: 9, Close: 11}.Valid(), "close above high")
	assert.False(t, Candle{OpenTime: ts, Open: 8, High: 12, Low: 9, Close: 11}.Valid(), "open below low")
	assert.False(t, Candle{OpenTime: ts, Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}.Valid())
	assert.Error(t, Candle{Open: 1, High: 0, Low: 0, Close: 0}.Validate())
}

func TestCandleApply(t *testing.T) {
	c := NewCandle(time.Unix(60, 0), 100, 1)
	c.Apply(105, 2)
	c.Apply(98, 1)
	c.Apply(101, 0.5)

	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 105.0, c.High)
	assert.Equal(t, 98.0, c.Low)
	assert.Equal(t, 101.0, c.Close)
	assert.InDelta(t, 4.5, c.Volume, 1e-9)
	assert.True(t, c.Bullish())
	assert.True(t, c.Valid())
}

func TestTimeframeBucket(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 7, 42, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 5, 10, 5, 0, 0, time.UTC), M5.Bucket(ts))
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), H1.Bucket(ts))
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), H4.Bucket(ts))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), D1.Bucket(ts))
	assert.Equal(t, time.Date(2024, 3, 5, 10, 10, 0, 0, time.UTC), M5.Next(ts))
	assert.Equal(t, 2*time.Minute+18*time.Second, M5.Countdown(ts))
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{"5m": M5, "H1": H1, "1MN": MN1, " 1w ": W1} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTimeframe("7M")
	assert.Error(t, err)

	assert.Equal(t, "15M", M15.String())
	assert.Equal(t, int64(2592000), MN1.Seconds())
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "02:05", FormatCountdown(125*time.Second))
	assert.Equal(t, "01:00:01", FormatCountdown(time.Hour+time.Second))
	assert.Equal(t, "00:00", FormatCountdown(-time.Second))
}

func TestInstrumentDigits(t *testing.T) {
	eur, err := LookupInstrument("eurusd")
	require.NoError(t, err)
	assert.Equal(t, 5, eur.Digits())

	gold, err := LookupInstrument("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 2, gold.Digits())

	assert.Equal(t, 0, Instrument{TickSize: 1}.Digits())

	_, err = LookupInstrument("DOGE")
	assert.Error(t, err)
}
