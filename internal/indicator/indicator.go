// Package indicator computes technical indicator series aligned
// index-for-index with a candle series.
//
// Every indicator is a streaming calculator fed with closed candles. The
// in-progress candle is evaluated with Peek, which never mutates state, so a
// provisional value can be recomputed on every tick and overwritten at close.
package indicator

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator type (e.g., "SMA", "EMA").
	Name() string

	// Period returns the lookback length.
	Period() int

	// Update feeds the close of a finalized candle.
	Update(close float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() and Ready() would be if a candle with this
	// close were added next, WITHOUT mutating internal state.
	Peek(close float64) (float64, bool)

	// Reset clears accumulated state.
	Reset()
}

// Overlay reports whether an indicator type is drawn on the price pane.
// Oscillators such as RSI have their own scale.
func Overlay(typ string) bool {
	switch typ {
	case "SMA", "EMA", "SMMA":
		return true
	}
	return false
}

// New creates an indicator by type name. ok is false for unknown types.
func New(typ string, period int) (Indicator, bool) {
	switch typ {
	case "SMA":
		return NewSMA(period), true
	case "EMA":
		return NewEMA(period), true
	case "SMMA":
		return NewSMMA(period), true
	case "RSI":
		return NewRSI(period), true
	}
	return nil, false
}
