// Package series maintains the ordered OHLCV history of one instrument on
// one timeframe: live tick application, pre-closed feed candles,
// historical merges and read-only windows for rendering.
//
// A Series is not safe for concurrent use; the owning chart session
// serializes every mutation.
package series

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trading-chartv1/internal/markethours"
	"trading-chartv1/internal/model"
)

var (
	// ErrDataConflict is returned when a historical candle disagrees with
	// one already held at the same open time.
	ErrDataConflict = errors.New("data conflict")

	// ErrInvalidCandle is returned for candles that break the OHLC ordering
	// or are not aligned to the series timeframe.
	ErrInvalidCandle = errors.New("invalid candle")
)

// Update describes what a mutation did, so callers can drive derived state.
type Update struct {
	// From is the lowest index whose candle changed or was inserted; -1 when nothing changed.
	From int
	// Rebuild is set when indices before the previous end moved (inserts or trims).
	Rebuild bool
	// Closed lists candles finalized by this call, oldest first.
	Closed []model.Candle
	// Dropped is set when the input was discarded (out of order or invalid).
	Dropped bool
	// Gap is set when more than one period elapsed since the previous candle.
	Gap bool
	// GapExpected is set when the market was closed during the gap.
	GapExpected bool
}

// Changed reports whether any candle was touched.
func (u Update) Changed() bool { return u.From >= 0 }

func noChange() Update { return Update{From: -1} }

func dropped() Update { return Update{From: -1, Dropped: true} }

// Observer is called by the series after every mutation that changed a candle.
type Observer interface {
	SeriesUpdated(s *Series, u Update)
}

// Options tunes a Series.
type Options struct {
	// MaxLen caps the retained candles; 0 keeps everything.
	MaxLen int
	// Schedule classifies feed gaps; nil means always open.
	Schedule markethours.Schedule
	Logger   *slog.Logger
}

// Series is the candle history. Open times are strictly increasing and only
// the last candle may be open.
type Series struct {
	symbol   string
	tf       model.Timeframe
	candles  []model.Candle
	lastTick time.Time
	maxLen   int
	schedule markethours.Schedule
	log      *slog.Logger

	observers []Observer
}

// New creates an empty series.
func New(symbol string, tf model.Timeframe, opts Options) *Series {
	if opts.Schedule == nil {
		opts.Schedule = markethours.AlwaysOpen
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Series{
		symbol:   symbol,
		tf:       tf,
		candles:  make([]model.Candle, 0, 512),
		maxLen:   opts.MaxLen,
		schedule: opts.Schedule,
		log:      opts.Logger.With(slog.String("component", "series"), slog.String("symbol", symbol), slog.String("tf", tf.String())),
	}
}

func (s *Series) Symbol() string             { return s.symbol }
func (s *Series) Timeframe() model.Timeframe { return s.tf }
func (s *Series) Len() int                   { return len(s.candles) }
func (s *Series) At(i int) model.Candle      { return s.candles[i] }
func (s *Series) Close(i int) float64        { return s.candles[i].Close }
func (s *Series) IsClosed(i int) bool        { return s.candles[i].Closed }
func (s *Series) LastTickTime() time.Time    { return s.lastTick }

// Observe registers o to be called after each mutation.
func (s *Series) Observe(o Observer) { s.observers = append(s.observers, o) }

func (s *Series) notify(u Update) Update {
	if u.Changed() {
		for _, o := range s.observers {
			o.SeriesUpdated(s, u)
		}
	}
	return u
}

// Schedule is the session calendar used for gap classification.
func (s *Series) Schedule() markethours.Schedule { return s.schedule }

// Last returns the newest candle.
func (s *Series) Last() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// HasOpen reports whether the newest candle is still in progress.
func (s *Series) HasOpen() bool {
	n := len(s.candles)
	return n > 0 && !s.candles[n-1].Closed
}

// Candles returns a copy of the whole history.
func (s *Series) Candles() []model.Candle {
	out := make([]model.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// IndexOf returns the index of the candle whose period contains t.
func (s *Series) IndexOf(t time.Time) (int, bool) {
	b := s.tf.Bucket(t)
	i := sort.Search(len(s.candles), func(i int) bool { return !s.candles[i].OpenTime.Before(b) })
	if i < len(s.candles) && s.candles[i].OpenTime.Equal(b) {
		return i, true
	}
	return -1, false
}

// ApplyTick folds a trade into the open candle, rolling over to a new candle
// when the tick belongs to a later period. Late ticks are dropped.
func (s *Series) ApplyTick(price, volume float64, ts time.Time) Update {
	return s.notify(s.applyTick(price, volume, ts))
}

func (s *Series) applyTick(price, volume float64, ts time.Time) Update {
	if !(price > 0) || volume < 0 {
		s.log.Warn("dropping invalid tick", slog.Float64("price", price), slog.Float64("volume", volume))
		return dropped()
	}
	if !s.lastTick.IsZero() && ts.Before(s.lastTick) {
		s.log.Debug("dropping out-of-order tick",
			slog.Time("ts", ts), slog.Time("last_tick", s.lastTick))
		return dropped()
	}

	bucket := s.tf.Bucket(ts)
	n := len(s.candles)
	u := noChange()

	if n > 0 {
		last := &s.candles[n-1]
		switch {
		case bucket.Before(last.OpenTime), bucket.Equal(last.OpenTime) && last.Closed:
			s.log.Debug("dropping tick for finished period",
				slog.Time("ts", ts), slog.Time("open_time", last.OpenTime))
			return dropped()
		case bucket.Equal(last.OpenTime):
			last.Apply(price, volume)
			s.lastTick = ts
			u.From = n - 1
			return u
		}
		if !last.Closed {
			last.Closed = true
			u.Closed = append(u.Closed, *last)
			u.From = n - 1
		}
		s.checkGap(&u, last.OpenTime, bucket)
	}

	s.candles = append(s.candles, model.NewCandle(bucket, price, volume))
	if u.From < 0 {
		u.From = len(s.candles) - 1
	}
	s.lastTick = ts
	s.trim(&u)
	return u
}

// ApplyCandle accepts a candle the feed has already finalized. It replaces the
// open candle of the same period, or closes the open candle and appends.
func (s *Series) ApplyCandle(c model.Candle) Update {
	return s.notify(s.applyCandle(c))
}

func (s *Series) applyCandle(c model.Candle) Update {
	if !c.Valid() {
		s.log.Warn("dropping invalid feed candle", slog.String("err", c.Validate().Error()))
		return dropped()
	}
	c.OpenTime = s.tf.Bucket(c.OpenTime)
	c.Closed = true

	n := len(s.candles)
	u := noChange()
	if n > 0 {
		last := &s.candles[n-1]
		switch {
		case c.OpenTime.Before(last.OpenTime):
			s.log.Debug("dropping out-of-order feed candle", slog.Time("open_time", c.OpenTime))
			return dropped()
		case c.OpenTime.Equal(last.OpenTime):
			if last.Closed {
				if !last.SameValues(c) {
					s.log.Warn("feed candle disagrees with closed candle, keeping existing",
						slog.Time("open_time", c.OpenTime))
				}
				return dropped()
			}
			*last = c
			u.From = n - 1
			u.Closed = append(u.Closed, c)
			s.advanceTick(c.OpenTime)
			return u
		}
		if !last.Closed {
			last.Closed = true
			u.Closed = append(u.Closed, *last)
			u.From = n - 1
		}
		s.checkGap(&u, last.OpenTime, c.OpenTime)
	}

	s.candles = append(s.candles, c)
	if u.From < 0 {
		u.From = len(s.candles) - 1
	}
	u.Closed = append(u.Closed, c)
	s.advanceTick(c.OpenTime)
	s.trim(&u)
	return u
}

// AppendHistorical merges a block of closed candles. The merge is atomic: on
// error nothing is applied. Identical duplicates are skipped.
func (s *Series) AppendHistorical(block []model.Candle) (Update, error) {
	u, err := s.appendHistorical(block)
	if err != nil {
		return u, err
	}
	return s.notify(u), nil
}

func (s *Series) appendHistorical(block []model.Candle) (Update, error) {
	if len(block) == 0 {
		return noChange(), nil
	}

	in := make([]model.Candle, len(block))
	for i, c := range block {
		if !c.Valid() {
			return noChange(), fmt.Errorf("%w: index %d: %v", ErrInvalidCandle, i, c.Validate())
		}
		if !s.tf.Bucket(c.OpenTime).Equal(c.OpenTime.UTC()) {
			return noChange(), fmt.Errorf("%w: index %d: open time %s not aligned to %s",
				ErrInvalidCandle, i, c.OpenTime.UTC().Format(time.RFC3339), s.tf)
		}
		c.OpenTime = c.OpenTime.UTC()
		c.Closed = true
		in[i] = c
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].OpenTime.Before(in[j].OpenTime) })

	var openTime time.Time
	if s.HasOpen() {
		openTime = s.candles[len(s.candles)-1].OpenTime
	}

	merged := make([]model.Candle, 0, len(s.candles)+len(in))
	from := -1
	i, j := 0, 0
	for i < len(s.candles) || j < len(in) {
		if j < len(in) && !openTime.IsZero() && !in[j].OpenTime.Before(openTime) {
			return noChange(), fmt.Errorf("%w: historical candle at %s overlaps the in-progress candle",
				ErrDataConflict, in[j].OpenTime.Format(time.RFC3339))
		}
		switch {
		case j >= len(in):
			merged = append(merged, s.candles[i])
			i++
		case i >= len(s.candles) || in[j].OpenTime.Before(s.candles[i].OpenTime):
			if n := len(merged); n > 0 && merged[n-1].OpenTime.Equal(in[j].OpenTime) {
				if !merged[n-1].SameValues(in[j]) {
					return noChange(), fmt.Errorf("%w: duplicate candles at %s in block",
						ErrDataConflict, in[j].OpenTime.Format(time.RFC3339))
				}
				j++
				continue
			}
			if from < 0 {
				from = len(merged)
			}
			merged = append(merged, in[j])
			j++
		case in[j].OpenTime.Equal(s.candles[i].OpenTime):
			if !s.candles[i].SameValues(in[j]) {
				return noChange(), fmt.Errorf("%w: candle at %s differs from existing",
					ErrDataConflict, in[j].OpenTime.Format(time.RFC3339))
			}
			j++
		default:
			merged = append(merged, s.candles[i])
			i++
		}
	}

	if from < 0 {
		return noChange(), nil
	}
	oldLen := len(s.candles)
	s.candles = merged
	u := Update{From: from, Rebuild: from < oldLen}
	if !s.HasOpen() {
		s.advanceTick(s.candles[len(s.candles)-1].OpenTime)
	}
	s.trim(&u)
	s.log.Debug("merged history", slog.Int("added", len(merged)-oldLen), slog.Int("len", len(s.candles)))
	return u, nil
}

// Window returns a read-only view of up to count candles ending before end.
// end is clamped to [0, Len()].
func (s *Series) Window(count, end int) View {
	if end > len(s.candles) {
		end = len(s.candles)
	}
	if end < 0 {
		end = 0
	}
	if count < 0 {
		count = 0
	}
	start := end - count
	if start < 0 {
		start = 0
	}
	return View{candles: s.candles[start:end:end], first: start}
}

// checkGap classifies a jump of more than one period between prev and next.
func (s *Series) checkGap(u *Update, prev, next time.Time) {
	expectedNext := prev.Add(s.tf.Duration())
	if !next.After(expectedNext) {
		return
	}
	u.Gap = true
	missing := int(next.Sub(expectedNext) / s.tf.Duration())
	if markethours.ClosedDuring(s.schedule, expectedNext, next) {
		u.GapExpected = true
		s.log.Debug("feed resumed after market close",
			slog.Time("from", expectedNext), slog.Time("to", next), slog.Int("missing", missing))
		return
	}
	s.log.Warn("feed gap, resuming at current period",
		slog.Time("from", expectedNext), slog.Time("to", next), slog.Int("missing", missing))
}

// advanceTick moves the out-of-order watermark to the start of the period
// after openTime, so later ticks for finished periods are rejected.
func (s *Series) advanceTick(openTime time.Time) {
	next := openTime.Add(s.tf.Duration())
	if next.After(s.lastTick) {
		s.lastTick = next
	}
}

func (s *Series) trim(u *Update) {
	if s.maxLen <= 0 || len(s.candles) <= s.maxLen {
		return
	}
	drop := len(s.candles) - s.maxLen
	kept := make([]model.Candle, s.maxLen, cap(s.candles))
	copy(kept, s.candles[drop:])
	s.candles = kept
	u.From = 0
	u.Rebuild = true
}
