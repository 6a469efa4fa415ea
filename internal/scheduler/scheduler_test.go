package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-chartv1/internal/render"
	"trading-chartv1/internal/viewport"
)

type countingSource struct {
	n atomic.Uint64
}

func (c *countingSource) Snapshot() *render.Frame {
	seq := c.n.Add(1)
	return &render.Frame{
		Seq:    seq,
		Layout: viewport.NewLayout(0, 200, 100, viewport.Identity, 100),
		Scale:  viewport.NewPriceScale(1, 2),
		Style:  render.DefaultStyle(),
	}
}

type statsObserver struct {
	mu        sync.Mutex
	frames    int
	coalesced []uint64
}

func (o *statsObserver) FrameRendered(_ time.Duration, coalesced uint64, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames++
	o.coalesced = append(o.coalesced, coalesced)
}

func newTestScheduler(src Snapshotter, obs Observer, interval time.Duration) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(src, render.NewCompositor(logger), Options{Interval: interval, Logger: logger, Observer: obs})
}

func TestTickCoalesces(t *testing.T) {
	src := &countingSource{}
	obs := &statsObserver{}
	s := newTestScheduler(src, obs, 0)
	assert.Equal(t, DefaultInterval, s.Interval())

	assert.False(t, s.Tick(), "clean scheduler must not render")
	assert.Nil(t, s.Latest())

	for i := 0; i < 50; i++ {
		s.MarkDirty()
	}
	assert.True(t, s.Dirty())
	assert.True(t, s.Tick())
	assert.False(t, s.Dirty())
	assert.False(t, s.Tick())

	assert.Equal(t, uint64(1), s.Frames())
	assert.Equal(t, uint64(1), src.n.Load(), "one snapshot per frame")
	assert.Equal(t, []uint64{50}, obs.coalesced)
	assert.Equal(t, 1, s.FrameStats().Count)

	out := s.Latest()
	require.NotNil(t, out)
	assert.Equal(t, uint64(1), out.Frame.Seq)
	assert.NoError(t, out.Err)
	assert.Equal(t, "background", out.List.LayerOrder()[0])
}

func TestRunRendersAtMostOncePerTick(t *testing.T) {
	src := &countingSource{}
	s := newTestScheduler(src, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Hammer mutations from another goroutine.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.MarkDirty()
			}
		}
	}()

	time.Sleep(60 * time.Millisecond)
	close(stop)
	wg.Wait()

	require.Eventually(t, func() bool { return !s.Dirty() }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	frames := s.Frames()
	assert.Greater(t, frames, uint64(0))
	assert.Less(t, frames, uint64(40), "frames are paced by the clock, not by mutations")
	assert.Equal(t, frames, src.n.Load())
}

func TestRunTwice(t *testing.T) {
	s := newTestScheduler(&countingSource{}, nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Run(ctx), errAlreadyRunning)
}
