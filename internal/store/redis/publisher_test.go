package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-chartv1/internal/model"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var t0 = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func cc(i int) model.ClosedCandle {
	return model.ClosedCandle{Symbol: "EURUSD", Timeframe: model.M1, Candle: model.Candle{
		OpenTime: t0.Add(time.Duration(i) * time.Minute), Open: 1, High: 2, Low: 1, Close: 2, Closed: true,
	}}
}

type fakeWriter struct {
	fail    bool
	batches [][]model.ClosedCandle
}

func (f *fakeWriter) write(_ context.Context, b []model.ClosedCandle) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.batches = append(f.batches, append([]model.ClosedCandle(nil), b...))
	return nil
}

func newTestPublisher(cfg PublisherConfig) (*Publisher, *fakeWriter, *fakeClock) {
	cfg.Logger = quiet()
	p := NewPublisher(nil, cfg)
	fw := &fakeWriter{}
	p.write = fw.write
	clk := &fakeClock{t: t0}
	p.cb.now = clk.now
	return p, fw, clk
}

func TestPublisherBuffersWhileOpenAndFlushes(t *testing.T) {
	var flushed int
	p, fw, clk := newTestPublisher(PublisherConfig{MaxFailures: 2, ResetTimeout: time.Second, OnFlush: func(n int) { flushed = n }})
	ctx := context.Background()

	p.Publish(ctx, cc(0))
	require.Len(t, fw.batches, 1)

	fw.fail = true
	p.Publish(ctx, cc(1))
	p.Publish(ctx, cc(2)) // trips the breaker
	assert.Equal(t, StateOpen, p.Breaker().CurrentState())
	p.Publish(ctx, cc(3)) // rejected
	assert.Equal(t, 3, p.Pending())

	fw.fail = false
	clk.advance(2 * time.Second)
	p.Publish(ctx, cc(4)) // probe closes the breaker
	assert.Equal(t, StateClosed, p.Breaker().CurrentState())

	select {
	case <-p.flushC:
	default:
		t.Fatal("closing the breaker must schedule a flush")
	}
	p.flush(ctx)
	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, 3, flushed)
	last := fw.batches[len(fw.batches)-1]
	require.Len(t, last, 3)
	assert.Equal(t, cc(1).Candle.OpenTime, last[0].Candle.OpenTime)
}

func TestPublisherBufferDropsOldest(t *testing.T) {
	p, fw, _ := newTestPublisher(PublisherConfig{MaxFailures: 1, ResetTimeout: time.Hour, MaxBuffer: 2})
	fw.fail = true
	for i := 0; i < 5; i++ {
		p.Publish(context.Background(), cc(i))
	}
	require.Equal(t, 2, p.Pending())
	assert.Equal(t, cc(3).Candle.OpenTime, p.buffer[0].Candle.OpenTime)
}

func TestRunPublishesUntilClosed(t *testing.T) {
	p, fw, _ := newTestPublisher(PublisherConfig{})
	ch := make(chan model.ClosedCandle, 3)
	ch <- cc(0)
	ch <- cc(1)
	close(ch)
	p.Run(context.Background(), ch)
	assert.Len(t, fw.batches, 2)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "chart:candles:EURUSD:5M", StreamKey("EURUSD", model.M5))
	assert.Equal(t, "chart:candles:latest:EURUSD:1H", LatestKey("EURUSD", model.H1))
	assert.Equal(t, "chart:pub:XAUUSD:1D", Channel("XAUUSD", model.D1))
	assert.Equal(t, int64(10080), streamMaxLen(model.M1))
	assert.Equal(t, int64(500), streamMaxLen(model.H1))
}

func TestDecodeHistory(t *testing.T) {
	enc := func(c model.ClosedCandle) string {
		b, _ := json.Marshal(c)
		return string(b)
	}
	dup := cc(1)
	dup.Candle.Close = 1.5
	msgs := []goredis.XMessage{ // newest first, as XREVRANGE returns
		{ID: "5-0", Values: map[string]interface{}{"data": enc(cc(2))}},
		{ID: "4-0", Values: map[string]interface{}{"data": enc(dup)}},
		{ID: "3-0", Values: map[string]interface{}{"data": "{broken"}},
		{ID: "2-0", Values: map[string]interface{}{"data": enc(cc(1))}},
		{ID: "1-0", Values: map[string]interface{}{"data": enc(cc(0))}},
	}
	got := decodeHistory(msgs, quiet())
	require.Len(t, got, 3)
	assert.Equal(t, t0, got[0].OpenTime)
	assert.Equal(t, 1.5, got[1].Close, "later write wins")
	assert.True(t, got[2].Closed)
}
