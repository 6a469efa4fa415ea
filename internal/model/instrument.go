package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Instrument describes a tradeable symbol and how its prices are displayed.
type Instrument struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	TickSize    float64 `json:"tick_size" yaml:"tick_size"` // minimum price movement
	Hours       string  `json:"hours" yaml:"hours"`         // schedule name, see markethours
}

// Digits is the number of decimals needed to show one tick.
func (i Instrument) Digits() int {
	if i.TickSize <= 0 {
		return 2
	}
	if i.TickSize >= 1 {
		return 0
	}
	exp := decimal.NewFromFloat(i.TickSize).Exponent()
	if exp >= 0 {
		return 0
	}
	return int(-exp)
}

// Instruments is the built-in catalog.
var Instruments = map[string]Instrument{
	"EURUSD": {Symbol: "EURUSD", DisplayName: "Euro / US Dollar", TickSize: 0.00001, Hours: "24/5"},
	"GBPUSD": {Symbol: "GBPUSD", DisplayName: "British Pound / US Dollar", TickSize: 0.00001, Hours: "24/5"},
	"USDJPY": {Symbol: "USDJPY", DisplayName: "US Dollar / Japanese Yen", TickSize: 0.001, Hours: "24/5"},
	"AUDUSD": {Symbol: "AUDUSD", DisplayName: "Australian Dollar / US Dollar", TickSize: 0.00001, Hours: "24/5"},
	"USDCAD": {Symbol: "USDCAD", DisplayName: "US Dollar / Canadian Dollar", TickSize: 0.00001, Hours: "24/5"},
	"XAUUSD": {Symbol: "XAUUSD", DisplayName: "Gold / US Dollar", TickSize: 0.01, Hours: "24/5"},
	"XAGUSD": {Symbol: "XAGUSD", DisplayName: "Silver / US Dollar", TickSize: 0.001, Hours: "24/5"},
	"NIFTY":  {Symbol: "NIFTY", DisplayName: "NIFTY 50", TickSize: 0.05, Hours: "NSE"},
}

// LookupInstrument finds a catalog entry by symbol (case-insensitive).
func LookupInstrument(symbol string) (Instrument, error) {
	inst, ok := Instruments[strings.ToUpper(symbol)]
	if !ok {
		return Instrument{}, fmt.Errorf("unknown instrument %q", symbol)
	}
	return inst, nil
}
