package indicator

import (
	"fmt"
	"log/slog"

	"trading-chartv1/internal/series"
)

// Source is the candle data an engine reads. *series.Series satisfies it.
type Source interface {
	Len() int
	Close(i int) float64
	IsClosed(i int) bool
}

// Value is one point of an indicator series; OK is false during warm-up.
type Value struct {
	V  float64 `json:"v"`
	OK bool    `json:"ok"`
}

// Line is a detached copy of an indicator series, or a window of one.
type Line struct {
	Name    string  `json:"name"`
	Config  Config  `json:"config"`
	Overlay bool    `json:"overlay"`
	First   int     `json:"first"` // series index of Values[0]
	Values  []Value `json:"values"`
}

// line holds live state for one configured indicator.
type line struct {
	cfg    Config
	ind    Indicator
	values []Value
	fed    int // closed candles folded into ind
}

func newLine(cfg Config) *line {
	ind, _ := New(cfg.Type, cfg.Period)
	return &line{cfg: cfg, ind: ind}
}

func (l *line) reset() {
	l.ind.Reset()
	l.values = l.values[:0]
	l.fed = 0
}

// sync brings values up to src.Len(). Closed candles past fed are folded in
// with Update; the open candle, if any, gets a provisional Peek value that is
// overwritten on the next call.
func (l *line) sync(src Source) {
	n := src.Len()
	if l.fed > n {
		l.reset()
	}
	l.values = l.values[:l.fed]
	for i := l.fed; i < n; i++ {
		price := src.Close(i)
		if src.IsClosed(i) {
			l.ind.Update(price)
			l.fed++
			l.values = append(l.values, Value{V: l.ind.Value(), OK: l.ind.Ready()})
			continue
		}
		v, ok := l.ind.Peek(price)
		l.values = append(l.values, Value{V: v, OK: ok})
	}
}

// Engine keeps one indicator series per config, each the same length as the
// source. It is not safe for concurrent use; the owning session locks.
type Engine struct {
	src   Source
	lines []*line
	log   *slog.Logger
}

// NewEngine creates an engine over src and computes every config from scratch.
func NewEngine(src Source, configs []Config, logger *slog.Logger) (*Engine, error) {
	if err := Validate(configs); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{src: src, log: logger.With(slog.String("component", "indicator"))}
	for _, cfg := range configs {
		e.lines = append(e.lines, newLine(cfg))
	}
	e.Rebuild()
	return e, nil
}

// SeriesUpdated implements series.Observer.
func (e *Engine) SeriesUpdated(_ *series.Series, u series.Update) {
	e.Sync(u.From, u.Rebuild)
}

// Sync recomputes values from index from onward. Values before from are
// kept unless rebuild is set or from falls inside already-finalized data.
func (e *Engine) Sync(from int, rebuild bool) {
	for _, l := range e.lines {
		if rebuild || from < l.fed {
			l.reset()
		}
		l.sync(e.src)
	}
}

// Rebuild recomputes every indicator from the first candle.
func (e *Engine) Rebuild() {
	for _, l := range e.lines {
		l.reset()
		l.sync(e.src)
	}
}

// Configs returns the active indicator set.
func (e *Engine) Configs() []Config {
	out := make([]Config, len(e.lines))
	for i, l := range e.lines {
		out[i] = l.cfg
	}
	return out
}

// Add appends an indicator and computes it in full.
func (e *Engine) Add(cfg Config) error {
	next := append(e.Configs(), cfg)
	if err := Validate(next); err != nil {
		return err
	}
	l := newLine(cfg)
	l.sync(e.src)
	e.lines = append(e.lines, l)
	return nil
}

// Remove drops an indicator by name ("SMA_20").
func (e *Engine) Remove(name string) error {
	for i, l := range e.lines {
		if l.cfg.Name() == name {
			e.lines = append(e.lines[:i], e.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("indicator %s not configured", name)
}

// SetConfigs replaces the indicator set. Lines whose config is unchanged keep
// their computed values; new or re-parameterized lines are recomputed in full.
// Returns the number of preserved and newly computed lines.
func (e *Engine) SetConfigs(configs []Config) (preserved, created int, err error) {
	if err := Validate(configs); err != nil {
		return 0, 0, err
	}
	if setsEqual(e.Configs(), configs) {
		return len(e.lines), 0, nil
	}

	old := make(map[Config]*line, len(e.lines))
	for _, l := range e.lines {
		old[l.cfg] = l
	}
	lines := make([]*line, len(configs))
	for i, cfg := range configs {
		if l, ok := old[cfg]; ok {
			lines[i] = l
			preserved++
			continue
		}
		l := newLine(cfg)
		l.sync(e.src)
		lines[i] = l
		created++
	}
	e.lines = lines
	e.log.Info("indicator set reloaded",
		slog.Int("preserved", preserved), slog.Int("created", created))
	return preserved, created, nil
}

// Len returns the length of every indicator series (they are equal).
func (e *Engine) Len() int {
	if len(e.lines) == 0 {
		return e.src.Len()
	}
	return len(e.lines[0].values)
}

// Value returns the value of the named indicator at index i.
func (e *Engine) Value(name string, i int) (Value, bool) {
	for _, l := range e.lines {
		if l.cfg.Name() == name {
			if i < 0 || i >= len(l.values) {
				return Value{}, false
			}
			return l.values[i], true
		}
	}
	return Value{}, false
}

// Lines returns detached copies of every indicator series.
func (e *Engine) Lines() []Line {
	return e.Window(0, e.src.Len())
}

// Window returns detached copies of every indicator over [first, end).
func (e *Engine) Window(first, end int) []Line {
	out := make([]Line, len(e.lines))
	for i, l := range e.lines {
		lo, hi := clampRange(first, end, len(l.values))
		vals := make([]Value, hi-lo)
		copy(vals, l.values[lo:hi])
		out[i] = Line{
			Name:    l.cfg.Name(),
			Config:  l.cfg,
			Overlay: Overlay(l.cfg.Type),
			First:   lo,
			Values:  vals,
		}
	}
	return out
}

func clampRange(first, end, n int) (int, int) {
	if end > n {
		end = n
	}
	if first < 0 {
		first = 0
	}
	if first > end {
		first = end
	}
	return first, end
}
