// Package format renders prices and volumes for labels.
package format

import (
	"github.com/shopspring/decimal"
)

// Price formats p with a fixed number of decimals, rounding half away from zero.
func Price(p float64, digits int) string {
	if digits < 0 {
		digits = 0
	}
	return decimal.NewFromFloat(p).StringFixed(int32(digits))
}

// Percent formats a 0..1 ratio as a whole percentage: 0.92 → "92%".
func Percent(r float64) string {
	return decimal.NewFromFloat(r).Shift(2).Round(0).String() + "%"
}

var volumeUnits = []struct {
	div    decimal.Decimal
	suffix string
}{
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// Volume abbreviates large volumes: 1520 → "1.52K".
func Volume(v float64) string {
	d := decimal.NewFromFloat(v)
	for _, u := range volumeUnits {
		if d.Abs().GreaterThanOrEqual(u.div) {
			return d.Div(u.div).Round(2).String() + u.suffix
		}
	}
	return d.Round(2).String()
}
