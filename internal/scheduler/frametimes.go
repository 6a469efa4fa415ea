package scheduler

import (
	"math"
	"slices"
	"sync"
	"time"
)

// FrameStats summarizes recent frame durations.
type FrameStats struct {
	Count int           `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// FrameTimes keeps the last N frame durations in a circular buffer.
type FrameTimes struct {
	mu      sync.Mutex
	samples []time.Duration
	pos     int
	count   int
}

// NewFrameTimes holds up to capacity samples; default 1024.
func NewFrameTimes(capacity int) *FrameTimes {
	if capacity <= 0 {
		capacity = 1024
	}
	return &FrameTimes{samples: make([]time.Duration, capacity)}
}

// Record adds one sample, evicting the oldest when full.
func (ft *FrameTimes) Record(d time.Duration) {
	ft.mu.Lock()
	ft.samples[ft.pos] = d
	ft.pos = (ft.pos + 1) % len(ft.samples)
	if ft.count < len(ft.samples) {
		ft.count++
	}
	ft.mu.Unlock()
}

// Stats returns percentiles over the retained samples.
func (ft *FrameTimes) Stats() FrameStats {
	ft.mu.Lock()
	sorted := make([]time.Duration, ft.count)
	if ft.count == len(ft.samples) {
		copy(sorted, ft.samples[ft.pos:])
		copy(sorted[len(ft.samples)-ft.pos:], ft.samples[:ft.pos])
	} else {
		copy(sorted, ft.samples[:ft.count])
	}
	ft.mu.Unlock()

	if len(sorted) == 0 {
		return FrameStats{}
	}
	slices.Sort(sorted)
	return FrameStats{
		Count: len(sorted),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
	}
}

// percentile interpolates linearly between closest ranks.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-frac) + float64(sorted[lower+1])*frac)
}
