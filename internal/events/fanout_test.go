package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"trading-chartv1/internal/model"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10, quiet())
	out1 := fo.Subscribe("journal")
	out2 := fo.Subscribe("redis")

	input := make(chan model.ClosedCandle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.ClosedCandle{Symbol: "EURUSD", Timeframe: model.M1, Candle: model.Candle{Open: 1.1, High: 1.2, Low: 1, Close: 1.15}}

	for name, out := range map[string]<-chan model.ClosedCandle{"out1": out1, "out2": out2} {
		select {
		case c := <-out:
			if c.Symbol != "EURUSD" {
				t.Errorf("%s: expected EURUSD, got %s", name, c.Symbol)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for candle", name)
		}
	}
}

func TestFanOut_DropsForSlowConsumer(t *testing.T) {
	fo := New(1, quiet())
	slow := fo.Subscribe("slow")
	fast := fo.Subscribe("fast")

	var drops []string
	fo.OnDrop = func(name string) { drops = append(drops, name) }

	// Broadcast directly so the test controls ordering.
	fo.broadcast(model.ClosedCandle{Symbol: "A"})
	<-fast
	fo.broadcast(model.ClosedCandle{Symbol: "B"})

	if len(drops) != 1 || drops[0] != "slow" {
		t.Fatalf("expected one drop for slow, got %v", drops)
	}
	if c := <-slow; c.Symbol != "A" {
		t.Errorf("slow should keep the first candle, got %s", c.Symbol)
	}
	stats := fo.ChannelStats()
	if len(stats) != 2 || stats[1].Name != "fast" || stats[1].Len != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestFanOut_ClosesOutputsOnInputClose(t *testing.T) {
	fo := New(1, quiet())
	out := fo.Subscribe("x")
	input := make(chan model.ClosedCandle)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()
	close(input)
	<-done
	if _, ok := <-out; ok {
		t.Fatal("expected output closed")
	}
}

func TestInputNeverBlocks(t *testing.T) {
	full := 0
	publish, ch := Input(1, func() { full++ })
	publish(model.ClosedCandle{Symbol: "A"})
	publish(model.ClosedCandle{Symbol: "B"})
	if full != 1 || len(ch) != 1 {
		t.Fatalf("full=%d len=%d", full, len(ch))
	}
}
