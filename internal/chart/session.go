// Package chart is the host-facing session that ties a candle series, its
// indicators, the viewport and the overlay annotations together.
//
// Every feed mutation goes through Ingest or ApplyCandle, which update the
// series and its indicators under one lock before marking the chart dirty.
// Snapshot copies everything a render needs under the same lock, so a frame
// never mixes two versions of the data.
package chart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"trading-chartv1/internal/id"
	"trading-chartv1/internal/indicator"
	"trading-chartv1/internal/markethours"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/series"
	"trading-chartv1/internal/timeframe"
	"trading-chartv1/internal/viewport"
)

// Metrics receives feed events. *metrics.Metrics implements it.
type Metrics interface {
	ObserveUpdate(symbol string, u series.Update)
	ObserveLoad(key timeframe.Key, took time.Duration, err error, superseded bool)
	LoadStateChanged(from, to timeframe.State, key timeframe.Key)
}

// Options configures a Session.
type Options struct {
	Symbol     string
	Timeframe  model.Timeframe
	Width      float64
	Height     float64
	Indicators []indicator.Config
	Viewport   viewport.Config
	Style      render.Style

	// MaxCandles caps the retained series; 0 keeps everything.
	MaxCandles int
	// HistoryLimit is how many candles a timeframe switch loads.
	HistoryLimit int
	LoadTimeout  time.Duration
	// Loader supplies history; nil starts every timeframe empty.
	Loader model.HistoryLoader

	Logger  *slog.Logger
	Metrics Metrics
	// OnDirty is called after every visible change (optional). The render
	// scheduler's MarkDirty goes here.
	OnDirty func()
	// Now is the clock for status text; defaults to time.Now.
	Now func() time.Time
}

// Session is one chart. All methods are safe for concurrent use.
type Session struct {
	id   string
	opts Options
	log  *slog.Logger
	tf   *timeframe.Controller

	mu         sync.RWMutex
	series     *series.Series
	engine     *indicator.Engine
	instrument model.Instrument
	configs    []indicator.Config
	vp         *viewport.Viewport
	style      render.Style
	orders     []model.OrderAnnotation
	signals    []model.Signal
	pointer    *render.Point
	seq        uint64

	subMu   sync.Mutex
	subs    map[int]func(model.ClosedCandle)
	nextSub int
}

type noHistory struct{}

func (noHistory) LoadHistory(context.Context, string, model.Timeframe, int) ([]model.Candle, error) {
	return nil, nil
}

// NewSession creates a session on an empty series. Call SetTimeframe or
// SetInstrument to load history.
func NewSession(opts Options) (*Session, error) {
	if opts.Symbol == "" {
		return nil, fmt.Errorf("chart: symbol required")
	}
	if opts.Timeframe <= 0 {
		opts.Timeframe = model.M1
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1200, 600
	}
	if opts.Indicators == nil {
		opts.Indicators = indicator.DefaultConfigs()
	}
	if opts.Style.Palette.Name == "" {
		opts.Style = render.DefaultStyle()
	}
	if opts.Loader == nil {
		opts.Loader = noHistory{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		id:      id.WithPrefix("ses"),
		opts:    opts,
		configs: append([]indicator.Config(nil), opts.Indicators...),
		vp:      viewport.New(opts.Viewport, opts.Width, opts.Height),
		style:   opts.Style,
		subs:    map[int]func(model.ClosedCandle){},
	}
	s.log = opts.Logger.With(slog.String("component", "chart"), slog.String("session", s.id))

	ser, eng, inst, err := s.build(timeframe.Key{Symbol: strings.ToUpper(opts.Symbol), Timeframe: opts.Timeframe}, nil)
	if err != nil {
		return nil, err
	}
	s.series, s.engine, s.instrument = ser, eng, inst

	s.tf = timeframe.New(opts.Loader, s.install, timeframe.Options{
		Limit:   opts.HistoryLimit,
		Timeout: opts.LoadTimeout,
		Logger:  opts.Logger,
		OnStateChange: func(from, to timeframe.State, key timeframe.Key) {
			s.log.Debug("timeframe state", slog.String("from", from.String()), slog.String("to", to.String()),
				slog.String("key", key.String()))
			if s.opts.Metrics != nil {
				s.opts.Metrics.LoadStateChanged(from, to, key)
			}
			s.markDirty()
		},
		OnLoad: func(key timeframe.Key, took time.Duration, err error, superseded bool) {
			if s.opts.Metrics != nil {
				s.opts.Metrics.ObserveLoad(key, took, err, superseded)
			}
		},
	})
	return s, nil
}

// ID is the session identifier.
func (s *Session) ID() string { return s.id }

func instrumentFor(symbol string) model.Instrument {
	if inst, err := model.LookupInstrument(symbol); err == nil {
		return inst
	}
	return model.Instrument{Symbol: symbol, DisplayName: symbol}
}

// build creates a series holding candles and an engine over it.
func (s *Session) build(key timeframe.Key, candles []model.Candle) (*series.Series, *indicator.Engine, model.Instrument, error) {
	inst := instrumentFor(key.Symbol)
	ser := series.New(key.Symbol, key.Timeframe, series.Options{
		MaxLen:   s.opts.MaxCandles,
		Schedule: markethours.Lookup(inst.Hours),
		Logger:   s.opts.Logger,
	})
	if _, err := ser.AppendHistorical(candles); err != nil {
		return nil, nil, inst, err
	}
	s.mu.RLock()
	configs := s.configs
	s.mu.RUnlock()
	eng, err := indicator.NewEngine(ser, configs, s.opts.Logger)
	if err != nil {
		return nil, nil, inst, err
	}
	ser.Observe(eng)
	return ser, eng, inst, nil
}

// install swaps in freshly loaded history. Called by the timeframe
// controller for the latest request only.
func (s *Session) install(key timeframe.Key, candles []model.Candle) error {
	ser, eng, inst, err := s.build(key, candles)
	if err != nil {
		return err
	}
	s.mu.Lock()
	// indicators may have changed while loading
	if _, _, err := eng.SetConfigs(s.configs); err != nil {
		s.mu.Unlock()
		return err
	}
	s.series, s.engine, s.instrument = ser, eng, inst
	s.vp.Reset()
	s.pointer = nil
	s.mu.Unlock()

	s.markDirty()
	return nil
}

func (s *Session) markDirty() {
	if s.opts.OnDirty != nil {
		s.opts.OnDirty()
	}
}

// Ingest applies one live tick. Ticks for another symbol are ignored.
func (s *Session) Ingest(t model.Tick) series.Update {
	s.mu.Lock()
	if t.Symbol != "" && !strings.EqualFold(t.Symbol, s.series.Symbol()) {
		s.mu.Unlock()
		return series.Update{From: -1}
	}
	ser := s.series
	u := ser.ApplyTick(t.Price, t.Volume, t.Time)
	s.mu.Unlock()

	s.afterUpdate(ser, u)
	return u
}

// ApplyCandle applies a candle pushed by the feed (closed or in progress).
func (s *Session) ApplyCandle(c model.Candle) series.Update {
	s.mu.Lock()
	ser := s.series
	u := ser.ApplyCandle(c)
	s.mu.Unlock()

	s.afterUpdate(ser, u)
	return u
}

// AppendHistory merges an externally supplied block of closed candles.
func (s *Session) AppendHistory(block []model.Candle) error {
	s.mu.Lock()
	ser := s.series
	u, err := ser.AppendHistorical(block)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.afterUpdate(ser, u)
	return nil
}

// afterUpdate runs outside the lock so subscribers may call back into the session.
func (s *Session) afterUpdate(ser *series.Series, u series.Update) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveUpdate(ser.Symbol(), u)
	}
	if !u.Changed() {
		return
	}
	s.markDirty()
	if len(u.Closed) == 0 {
		return
	}

	s.subMu.Lock()
	subs := make([]func(model.ClosedCandle), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, c := range u.Closed {
		cc := model.ClosedCandle{Symbol: ser.Symbol(), Timeframe: ser.Timeframe(), Candle: c}
		for _, fn := range subs {
			fn(cc)
		}
	}
}

// OnCandleClosed registers fn for every finalized candle and returns a
// function that removes it.
func (s *Session) OnCandleClosed(fn func(model.ClosedCandle)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	n := s.nextSub
	s.nextSub++
	s.subs[n] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, n)
		s.subMu.Unlock()
	}
}

// SetTimeframe switches the current symbol to tf. It returns false when the
// same switch is already loading.
func (s *Session) SetTimeframe(ctx context.Context, tf model.Timeframe) (bool, error) {
	s.mu.RLock()
	sym := s.series.Symbol()
	s.mu.RUnlock()
	return s.tf.Request(ctx, timeframe.Key{Symbol: sym, Timeframe: tf})
}

// SetInstrument switches symbol keeping the current timeframe.
func (s *Session) SetInstrument(ctx context.Context, symbol string) (bool, error) {
	s.mu.RLock()
	tf := s.series.Timeframe()
	s.mu.RUnlock()
	return s.tf.Request(ctx, timeframe.Key{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Timeframe: tf})
}

// Load requests an explicit key.
func (s *Session) Load(ctx context.Context, key timeframe.Key) (bool, error) {
	key.Symbol = strings.ToUpper(key.Symbol)
	return s.tf.Request(ctx, key)
}

// WaitLoaded blocks until no switch is in flight.
func (s *Session) WaitLoaded(ctx context.Context) error { return s.tf.Wait(ctx) }

// LoadState reports the timeframe controller state and the last load error.
func (s *Session) LoadState() (timeframe.State, error) { return s.tf.State(), s.tf.Err() }

// Key returns the symbol and timeframe currently displayed.
func (s *Session) Key() timeframe.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return timeframe.Key{Symbol: s.series.Symbol(), Timeframe: s.series.Timeframe()}
}

// Instrument returns the displayed instrument.
func (s *Session) Instrument() model.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instrument
}

// Len is the number of candles held.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series.Len()
}

// Candles returns a copy of the whole series.
func (s *Session) Candles() []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series.Candles()
}

// Indicators returns detached copies of every indicator series.
func (s *Session) Indicators() []indicator.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Lines()
}

// IndicatorConfigs returns the configured indicator set.
func (s *Session) IndicatorConfigs() []indicator.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]indicator.Config(nil), s.configs...)
}

// SetIndicators replaces the indicator set. Unchanged indicators keep their
// values; new ones are computed from the full history.
func (s *Session) SetIndicators(configs []indicator.Config) error {
	s.mu.Lock()
	preserved, created, err := s.engine.SetConfigs(configs)
	if err == nil {
		s.configs = append([]indicator.Config(nil), configs...)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.log.Info("indicators updated", slog.Int("preserved", preserved), slog.Int("created", created))
	s.markDirty()
	return nil
}

// Close cancels any in-flight load.
func (s *Session) Close() {
	s.tf.Close()
}
