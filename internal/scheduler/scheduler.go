// Package scheduler coalesces chart mutations into paced renders.
//
// Every mutation marks the chart dirty. A single clock checks the flag each
// interval; when set it clears it and renders exactly once from one snapshot,
// no matter how many mutations happened since the last frame.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"trading-chartv1/internal/render"
)

// DefaultInterval is roughly 60 frames per second.
const DefaultInterval = 16 * time.Millisecond

var errAlreadyRunning = errors.New("scheduler: already running")

// Snapshotter produces an immutable frame. chart.Session implements it.
type Snapshotter interface {
	Snapshot() *render.Frame
}

// Observer receives per-frame stats. *metrics.Metrics implements it.
type Observer interface {
	FrameRendered(took time.Duration, coalesced uint64, err error)
}

// Output is one rendered frame.
type Output struct {
	Frame *render.Frame
	List  *render.DisplayList
	Err   error
	Took  time.Duration
}

// Options tunes a Scheduler.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// Scheduler owns the repaint clock.
type Scheduler struct {
	src      Snapshotter
	comp     *render.Compositor
	interval time.Duration
	log      *slog.Logger
	obs      Observer

	dirty   atomic.Bool
	marks   atomic.Uint64
	frames  atomic.Uint64
	latest  atomic.Pointer[Output]
	running atomic.Bool
	times   *FrameTimes
}

// New creates a stopped scheduler.
func New(src Snapshotter, comp *render.Compositor, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		src:      src,
		comp:     comp,
		interval: opts.Interval,
		log:      opts.Logger.With(slog.String("component", "scheduler")),
		obs:      opts.Observer,
		times:    NewFrameTimes(0),
	}
}

// MarkDirty requests a render on the next tick. Safe from any goroutine.
func (s *Scheduler) MarkDirty() {
	s.marks.Add(1)
	s.dirty.Store(true)
}

// Dirty reports whether a render is pending.
func (s *Scheduler) Dirty() bool { return s.dirty.Load() }

// Frames is the number of renders issued.
func (s *Scheduler) Frames() uint64 { return s.frames.Load() }

// Latest returns the most recent output, or nil before the first frame.
func (s *Scheduler) Latest() *Output { return s.latest.Load() }

// FrameStats reports render durations over recent frames.
func (s *Scheduler) FrameStats() FrameStats { return s.times.Stats() }

// Interval returns the clock period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Tick runs one clock step and reports whether a frame was rendered.
func (s *Scheduler) Tick() bool {
	if !s.dirty.CompareAndSwap(true, false) {
		return false
	}
	coalesced := s.marks.Swap(0)

	start := time.Now()
	f := s.src.Snapshot()
	w, h := f.Layout.Width, f.Layout.Height
	dl := render.NewDisplayList(w, h)
	err := s.comp.Compose(f, dl)
	took := time.Since(start)

	s.latest.Store(&Output{Frame: f, List: dl, Err: err, Took: took})
	s.frames.Add(1)
	s.times.Record(took)
	if s.obs != nil {
		s.obs.FrameRendered(took, coalesced, err)
	}
	if err != nil {
		s.log.Debug("frame rendered with layer errors", slog.Uint64("seq", f.Seq), slog.String("err", err.Error()))
	}
	return true
}

// Run drives Tick until ctx is cancelled. Only one Run may be active.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("render clock started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("render clock stopped", slog.Uint64("frames", s.frames.Load()))
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}
