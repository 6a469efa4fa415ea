package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForexSessions(t *testing.T) {
	// 2024-03-08 is a Friday.
	friOpen := time.Date(2024, 3, 8, 21, 0, 0, 0, time.UTC)
	satClosed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	sunReopen := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	assert.True(t, Forex.IsOpen(friOpen))
	assert.False(t, Forex.IsOpen(satClosed))
	assert.True(t, Forex.IsOpen(sunReopen))

	assert.Equal(t, sunReopen, Forex.NextOpen(satClosed))
	assert.Equal(t, time.Date(2024, 3, 8, 22, 0, 0, 0, time.UTC), Forex.NextClose(friOpen))
	assert.Equal(t, time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC), Forex.NextClose(satClosed))
}

func TestClosedDuring(t *testing.T) {
	wed := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	assert.False(t, ClosedDuring(Forex, wed, wed.Add(3*time.Hour)), "midweek gap is not a close")

	fri := time.Date(2024, 3, 8, 21, 0, 0, 0, time.UTC)
	mon := time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC)
	assert.True(t, ClosedDuring(Forex, fri, mon), "weekend gap")

	assert.False(t, ClosedDuring(AlwaysOpen, fri, mon))
	assert.False(t, ClosedDuring(Forex, mon, fri), "reversed range")
}

func TestNSESessions(t *testing.T) {
	// 2026-01-26 Republic Day (Monday) is a holiday.
	holiday := time.Date(2026, 1, 26, 10, 0, 0, 0, IST)
	assert.False(t, NSE.IsOpen(holiday))
	assert.Equal(t, time.Date(2026, 1, 27, 9, 15, 0, 0, IST), NSE.NextOpen(holiday))

	open := time.Date(2026, 1, 27, 11, 0, 0, 0, IST)
	assert.True(t, NSE.IsOpen(open))
	assert.Equal(t, time.Date(2026, 1, 27, 15, 30, 0, 0, IST), NSE.NextClose(open))
}

func TestLookup(t *testing.T) {
	assert.Equal(t, "24/5", Lookup("24/5").Name())
	assert.Equal(t, "NSE", Lookup("nse").Name())
	assert.Equal(t, "24/7", Lookup("").Name())
}

func TestStatusString(t *testing.T) {
	sat := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "24/5 closed, opens Sun 22:00 UTC (34h0m)", StatusString(Forex, sat))
}
