package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the candle period of a series.
type Timeframe time.Duration

const (
	M1  = Timeframe(time.Minute)
	M5  = Timeframe(5 * time.Minute)
	M15 = Timeframe(15 * time.Minute)
	M30 = Timeframe(30 * time.Minute)
	H1  = Timeframe(time.Hour)
	H4  = Timeframe(4 * time.Hour)
	D1  = Timeframe(24 * time.Hour)
	W1  = Timeframe(7 * 24 * time.Hour)
	MN1 = Timeframe(30 * 24 * time.Hour)
)

// Timeframes lists the supported periods in ascending order.
var Timeframes = []Timeframe{M1, M5, M15, M30, H1, H4, D1, W1, MN1}

var timeframeNames = map[Timeframe]string{
	M1:  "1M",
	M5:  "5M",
	M15: "15M",
	M30: "30M",
	H1:  "1H",
	H4:  "4H",
	D1:  "1D",
	W1:  "1W",
	MN1: "1MN",
}

var timeframeAliases = map[string]Timeframe{
	"1M": M1, "M1": M1, "1MIN": M1,
	"5M": M5, "M5": M5,
	"15M": M15, "M15": M15,
	"30M": M30, "M30": M30,
	"1H": H1, "H1": H1,
	"4H": H4, "H4": H4,
	"1D": D1, "D1": D1,
	"1W": W1, "W1": W1,
	"1MN": MN1, "MN1": MN1,
}

// ParseTimeframe accepts "5M", "M5", "1H", "1MN" and so on (case-insensitive).
func ParseTimeframe(s string) (Timeframe, error) {
	tf, ok := timeframeAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// String returns the display name, or the raw duration for unnamed periods.
func (tf Timeframe) String() string {
	if n, ok := timeframeNames[tf]; ok {
		return n
	}
	return time.Duration(tf).String()
}

// Duration returns the period as a time.Duration.
func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

// Seconds returns the period length in whole seconds.
func (tf Timeframe) Seconds() int64 { return int64(time.Duration(tf) / time.Second) }

// Bucket returns the open time of the period containing t. Buckets are
// aligned to multiples of the period since the Unix epoch, in UTC.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	secs := tf.Seconds()
	if secs <= 0 {
		return t.UTC()
	}
	u := t.Unix()
	r := u % secs
	if r < 0 {
		r += secs
	}
	return time.Unix(u-r, 0).UTC()
}

// Next returns the open time of the period after the one containing t.
func (tf Timeframe) Next(t time.Time) time.Time {
	return tf.Bucket(t).Add(tf.Duration())
}

// Countdown returns the time remaining until the next candle opens.
func (tf Timeframe) Countdown(now time.Time) time.Duration {
	return tf.Next(now).Sub(now)
}

// FormatCountdown renders a countdown as MM:SS, or HH:MM:SS past an hour.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// MarshalText implements encoding.TextMarshaler.
func (tf Timeframe) MarshalText() ([]byte, error) { return []byte(tf.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (tf *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*tf = v
	return nil
}
