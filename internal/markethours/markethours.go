// Package markethours models trading sessions so the chart can tell an
// expected gap in the feed (market closed) from a dropped connection.
package markethours

import (
	"fmt"
	"strings"
	"time"
)

// Schedule answers session questions for one venue.
type Schedule interface {
	Name() string
	// IsOpen reports whether t falls inside a trading session.
	IsOpen(t time.Time) bool
	// NextOpen returns t when open, otherwise the start of the next session.
	NextOpen(t time.Time) time.Time
	// NextClose returns the end of the session that is open at t, or of
	// the next session when closed.
	NextClose(t time.Time) time.Time
}

// Lookup returns a schedule by name: "24/5" (forex), "24/7" (crypto) or "NSE".
// Unknown names fall back to 24/7 so that no gap is ever classified as expected.
func Lookup(name string) Schedule {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "24/5", "FOREX", "FX":
		return Forex
	case "NSE":
		return NSE
	default:
		return AlwaysOpen
	}
}

// ClosedDuring reports whether the market closes at any point in [from, to).
func ClosedDuring(s Schedule, from, to time.Time) bool {
	if !to.After(from) {
		return false
	}
	if !s.IsOpen(from) {
		return true
	}
	return s.NextClose(from).Before(to)
}

// StatusString returns a human-readable market status.
func StatusString(s Schedule, t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("%s open, closes in %s", s.Name(), fmtDur(s.NextClose(t).Sub(t)))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("%s closed, opens %s %s UTC (%s)",
		s.Name(), next.UTC().Weekday().String()[:3], next.UTC().Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// ── 24/7 ──

type alwaysOpen struct{}

// AlwaysOpen never closes.
var AlwaysOpen Schedule = alwaysOpen{}

func (alwaysOpen) Name() string                    { return "24/7" }
func (alwaysOpen) IsOpen(time.Time) bool           { return true }
func (alwaysOpen) NextOpen(t time.Time) time.Time  { return t }
func (alwaysOpen) NextClose(t time.Time) time.Time { return t.AddDate(100, 0, 0) }

// ── Forex 24/5 ──

// Forex sessions run from Sunday 22:00 UTC to Friday 22:00 UTC.
var Forex Schedule = weekly{
	name:  "24/5",
	open:  22 * time.Hour,
	close: 5*24*time.Hour + 22*time.Hour,
}

// weekly is a single session per week, offsets measured from Sunday 00:00 UTC.
type weekly struct {
	name        string
	open, close time.Duration
}

func (w weekly) Name() string { return w.name }

func weekStart(t time.Time) time.Time {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(u.Weekday()))
}

func (w weekly) IsOpen(t time.Time) bool {
	off := t.UTC().Sub(weekStart(t))
	return off >= w.open && off < w.close
}

func (w weekly) NextOpen(t time.Time) time.Time {
	if w.IsOpen(t) {
		return t
	}
	open := weekStart(t).Add(w.open)
	if !open.After(t) {
		open = open.AddDate(0, 0, 7)
	}
	return open
}

func (w weekly) NextClose(t time.Time) time.Time {
	cl := weekStart(t).Add(w.close)
	if !cl.After(t) {
		cl = cl.AddDate(0, 0, 7)
	}
	return cl
}

// ── NSE ──

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE cash market hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

type nse struct{}

// NSE is the Indian equity session, 9:15 to 15:30 IST on trading days.
var NSE Schedule = nse{}

func (nse) Name() string { return "NSE" }

func (nse) IsOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

func (n nse) NextOpen(t time.Time) time.Time {
	if n.IsOpen(t) {
		return t
	}
	ist := t.In(IST)
	todayOpen := time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}
	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // weekends plus the longest holiday run
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, IST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, OpenHour, OpenMinute, 0, 0, IST)
}

func (n nse) NextClose(t time.Time) time.Time {
	ist := n.NextOpen(t).In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// IsTradingDay returns true if t is Mon-Fri in IST and not an NSE holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	return wd >= time.Monday && wd <= time.Friday && !IsHoliday(ist)
}
