// Package events broadcasts closed candles from a chart session to its
// consumers (journal, redis publisher, push clients).
package events

import (
	"context"
	"log/slog"
	"sync"

	"trading-chartv1/internal/model"
)

// FanOut broadcasts closed candles from a single input channel to N output
// channels. A full output drops the candle for that consumer only, so a slow
// consumer never blocks ingestion.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.ClosedCandle
	names   []string
	bufSize int
	log     *slog.Logger

	// OnDrop is called when a candle is dropped for a subscriber.
	OnDrop func(subscriber string)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int, logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{bufSize: outputBufferSize, log: logger.With(slog.String("component", "events"))}
}

// Subscribe creates and returns a new named output channel. Outputs are
// closed when Run returns.
func (f *FanOut) Subscribe(name string) <-chan model.ClosedCandle {
	ch := make(chan model.ClosedCandle, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.names = append(f.names, name)
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers. Blocks until ctx is
// cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.ClosedCandle) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-input:
			if !ok {
				return
			}
			f.broadcast(c)
		}
	}
}

func (f *FanOut) broadcast(c model.ClosedCandle) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, ch := range f.outputs {
		select {
		case ch <- c:
		default:
			if f.OnDrop != nil {
				f.OnDrop(f.names[i])
			} else {
				f.log.Warn("subscriber full, dropping candle",
					slog.String("subscriber", f.names[i]), slog.String("symbol", c.Symbol),
					slog.Time("open_time", c.Candle.OpenTime))
			}
		}
	}
}

// ChannelStat is the (length, capacity) of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats reports subscriber saturation.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Name: f.names[i], Len: len(ch), Cap: cap(ch)}
	}
	return stats
}

// Input returns a publish function suitable for chart.Session.OnCandleClosed
// and the channel to hand to Run. Publishing never blocks.
func Input(size int, onFull func()) (func(model.ClosedCandle), chan model.ClosedCandle) {
	ch := make(chan model.ClosedCandle, size)
	return func(c model.ClosedCandle) {
		select {
		case ch <- c:
		default:
			if onFull != nil {
				onFull()
			}
		}
	}, ch
}
