// Package model holds the data types shared by every chart component:
// candles, ticks, timeframes, instruments and the read-only overlay
// annotations supplied by external collaborators.
package model

import (
	"fmt"
	"math"
	"time"
)

// Candle is one OHLCV bucket. OpenTime is the bucket start aligned to the
// series timeframe. Closed is false only for the in-progress candle.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Closed   bool      `json:"closed"`
}

// NewCandle opens a candle at openTime with every price set to price.
func NewCandle(openTime time.Time, price, volume float64) Candle {
	return Candle{
		OpenTime: openTime,
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		Volume:   volume,
	}
}

// Valid reports whether low <= min(open,close) <= max(open,close) <= high
// and no field is NaN or negative volume.
func (c Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Volume < 0 {
		return false
	}
	return c.Low <= c.BodyBottom() && c.BodyTop() <= c.High
}

// Validate is Valid with a descriptive error.
func (c Candle) Validate() error {
	if c.Valid() {
		return nil
	}
	return fmt.Errorf("candle %s: o=%g h=%g l=%g c=%g v=%g violates low<=open,close<=high",
		c.OpenTime.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
}

// Bullish reports close >= open.
func (c Candle) Bullish() bool { return c.Close >= c.Open }

// BodyTop is max(open, close).
func (c Candle) BodyTop() float64 { return math.Max(c.Open, c.Close) }

// BodyBottom is min(open, close).
func (c Candle) BodyBottom() float64 { return math.Min(c.Open, c.Close) }

// Apply folds a trade into the candle: extends high/low, moves close, adds volume.
func (c *Candle) Apply(price, volume float64) {
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += volume
}

// SameValues compares the OHLCV fields, ignoring the Closed flag.
func (c Candle) SameValues(o Candle) bool {
	return c.OpenTime.Equal(o.OpenTime) &&
		c.Open == o.Open && c.High == o.High && c.Low == o.Low &&
		c.Close == o.Close && c.Volume == o.Volume
}
