// Package timeframe switches a chart between (symbol, timeframe) keys.
//
// A switch loads history asynchronously. Requesting a different key while a
// load is in flight cancels it, and its result is discarded even if it
// completes afterwards. A failed load leaves the previously applied data in
// place.
package timeframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"trading-chartv1/internal/model"
)

// ErrLoadFailure wraps every history load error.
var ErrLoadFailure = errors.New("history load failed")

// State of the controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Key identifies one chart data set.
type Key struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
}

func (k Key) String() string { return k.Symbol + "/" + k.Timeframe.String() }

func (k Key) validate() error {
	if strings.TrimSpace(k.Symbol) == "" {
		return errors.New("timeframe: empty symbol")
	}
	if k.Timeframe <= 0 {
		return fmt.Errorf("timeframe: invalid timeframe %d", k.Timeframe)
	}
	return nil
}

// ApplyFunc installs loaded history. It runs with the controller locked and
// only for the latest request.
type ApplyFunc func(key Key, candles []model.Candle) error

// Options tunes a Controller.
type Options struct {
	Limit   int           // candles per load; default 500
	Timeout time.Duration // per load; default 30s
	Logger  *slog.Logger

	// OnStateChange is called on every transition (optional).
	OnStateChange func(from, to State, key Key)
	// OnLoad is called when a load settles, including superseded ones (optional).
	OnLoad func(key Key, took time.Duration, err error, superseded bool)
}

// Controller runs the Idle/Loading/Ready/Error state machine.
type Controller struct {
	mu      sync.Mutex
	loader  model.HistoryLoader
	apply   ApplyFunc
	opts    Options
	log     *slog.Logger
	state   State
	current Key // last applied
	pending Key // in flight
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New creates an idle controller.
func New(loader model.HistoryLoader, apply ApplyFunc, opts Options) *Controller {
	if opts.Limit <= 0 {
		opts.Limit = 500
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		loader: loader,
		apply:  apply,
		opts:   opts,
		log:    opts.Logger.With(slog.String("component", "timeframe")),
	}
}

// Request starts loading key. It returns false without doing anything when
// key is already loading. The load is detached from ctx cancellation but
// keeps its values.
func (c *Controller) Request(ctx context.Context, key Key) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateLoading && c.pending == key {
		return false, nil
	}
	if c.cancel != nil {
		c.log.Info("superseding load", slog.String("old", c.pending.String()), slog.String("new", key.String()))
		c.cancel()
	}

	c.gen++
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
	c.cancel = cancel
	c.pending = key
	c.done = make(chan struct{})
	c.transition(StateLoading, key)

	go c.load(loadCtx, c.gen, key, c.done)
	return true, nil
}

func (c *Controller) load(ctx context.Context, gen uint64, key Key, done chan struct{}) {
	defer close(done)

	start := time.Now()
	candles, err := c.loader.LoadHistory(ctx, key.Symbol, key.Timeframe, c.opts.Limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	superseded := gen != c.gen
	if c.opts.OnLoad != nil {
		c.opts.OnLoad(key, time.Since(start), err, superseded)
	}
	if superseded {
		c.log.Debug("discarding superseded load", slog.String("key", key.String()))
		return
	}
	c.cancel()
	c.cancel = nil

	if err == nil {
		err = c.apply(key, candles)
	}
	if err != nil {
		c.err = fmt.Errorf("%w: %s: %w", ErrLoadFailure, key, err)
		c.log.Warn("load failed", slog.String("key", key.String()), slog.String("err", err.Error()))
		c.transition(StateError, key)
		return
	}

	c.err = nil
	c.current = key
	c.log.Info("loaded", slog.String("key", key.String()), slog.Int("candles", len(candles)),
		slog.Duration("took", time.Since(start)))
	c.transition(StateReady, key)
}

func (c *Controller) transition(to State, key Key) {
	from := c.state
	c.state = to
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(from, to, key)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the key of the data last applied; false before the first
// successful load.
func (c *Controller) Current() (Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != Key{}
}

// Pending returns the key most recently requested.
func (c *Controller) Pending() Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Err returns the error of the last failed load, nil otherwise.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until no load is in flight and returns Err.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state != StateLoading {
			err := c.err
			c.mu.Unlock()
			return err
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels any in-flight load. Its result is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	if c.state == StateLoading {
		c.transition(StateIdle, c.pending)
	}
}
