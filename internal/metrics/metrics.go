// Package metrics exposes Prometheus metrics and the health endpoint for chartd.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trading-chartv1/internal/series"
	"trading-chartv1/internal/timeframe"
)

// Metrics holds all Prometheus metrics for the chart service.
type Metrics struct {
	TicksTotal    *prometheus.CounterVec // labels: symbol
	DroppedTicks  *prometheus.CounterVec // labels: symbol
	FeedGaps      *prometheus.CounterVec // labels: symbol, expected
	CandlesClosed *prometheus.CounterVec // labels: symbol
	FeedDrops     *prometheus.CounterVec // labels: reason
	WSReconnects  prometheus.Counter

	// Render scheduler
	FramesTotal      prometheus.Counter
	FrameErrors      prometheus.Counter
	FrameDur         prometheus.Histogram
	CoalescedChanges prometheus.Histogram

	// Timeframe switches
	Switches  *prometheus.CounterVec // labels: result=ok|error|superseded
	LoadDur   prometheus.Histogram
	LoadState prometheus.Gauge // timeframe.State value

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Journal + publisher
	SQLiteCommitDur          prometheus.Histogram
	SQLiteCommitErrors       prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter
	RedisFlushedWrites       prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fast := []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1}

	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_ticks_total",
			Help: "Ticks applied to the chart series",
		}, []string{"symbol"}),
		DroppedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_dropped_ticks_total",
			Help: "Ticks rejected by the series (out of order or invalid)",
		}, []string{"symbol"}),
		FeedGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_feed_gaps_total",
			Help: "Gaps of more than one period between candles",
		}, []string{"symbol", "expected"}),
		CandlesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_candles_closed_total",
			Help: "Candles finalized by the series",
		}, []string{"symbol"}),
		FeedDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_feed_drops_total",
			Help: "Feed messages dropped before reaching the series",
		}, []string{"reason"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_ws_reconnects_total",
			Help: "Feed WebSocket reconnection attempts",
		}),

		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_frames_total",
			Help: "Frames composed by the render scheduler",
		}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_frame_errors_total",
			Help: "Frames with at least one failed layer",
		}),
		FrameDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_frame_duration_seconds",
			Help:    "Snapshot plus compose latency per frame",
			Buckets: fast,
		}),
		CoalescedChanges: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_coalesced_changes",
			Help:    "Dirty marks folded into one frame",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		Switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_timeframe_switches_total",
			Help: "Settled history loads by result",
		}, []string{"result"}),
		LoadDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_history_load_duration_seconds",
			Help:    "History load latency",
			Buckets: prometheus.DefBuckets,
		}),
		LoadState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_load_state",
			Help: "Timeframe controller state (0=idle, 1=loading, 2=ready, 3=error)",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_fanout_drops_total",
			Help: "Closed candles dropped by the fan-out per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chartd_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_sqlite_commit_duration_seconds",
			Help:    "SQLite journal batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_sqlite_commit_errors_total",
			Help: "Failed SQLite journal commits",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_redis_buffered_writes_total",
			Help: "Candles buffered while the Redis breaker was open",
		}),
		RedisFlushedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_redis_flushed_writes_total",
			Help: "Buffered candles replayed after the breaker closed",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.FeedGaps,
		m.CandlesClosed,
		m.FeedDrops,
		m.WSReconnects,
		m.FramesTotal,
		m.FrameErrors,
		m.FrameDur,
		m.CoalescedChanges,
		m.Switches,
		m.LoadDur,
		m.LoadState,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.SQLiteCommitDur,
		m.SQLiteCommitErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.RedisFlushedWrites,
	)
	return m
}

// ObserveUpdate records one series mutation.
func (m *Metrics) ObserveUpdate(symbol string, u series.Update) {
	if u.Dropped {
		m.DroppedTicks.WithLabelValues(symbol).Inc()
		return
	}
	m.TicksTotal.WithLabelValues(symbol).Inc()
	if u.Gap {
		m.FeedGaps.WithLabelValues(symbol, strconv.FormatBool(u.GapExpected)).Inc()
	}
	if n := len(u.Closed); n > 0 {
		m.CandlesClosed.WithLabelValues(symbol).Add(float64(n))
	}
}

// ObserveLoad records a settled history load.
func (m *Metrics) ObserveLoad(_ timeframe.Key, took time.Duration, err error, superseded bool) {
	switch {
	case superseded:
		m.Switches.WithLabelValues("superseded").Inc()
		return
	case err != nil:
		m.Switches.WithLabelValues("error").Inc()
	default:
		m.Switches.WithLabelValues("ok").Inc()
	}
	m.LoadDur.Observe(took.Seconds())
}

// FrameRendered records one scheduler frame.
func (m *Metrics) FrameRendered(took time.Duration, coalesced uint64, err error) {
	m.FramesTotal.Inc()
	m.FrameDur.Observe(took.Seconds())
	m.CoalescedChanges.Observe(float64(coalesced))
	if err != nil {
		m.FrameErrors.Inc()
	}
}

// LoadStateChanged tracks the timeframe controller state.
func (m *Metrics) LoadStateChanged(_, to timeframe.State, _ timeframe.Key) {
	m.LoadState.Set(float64(to))
}

// SQLiteCommitted records a journal commit.
func (m *Metrics) SQLiteCommitted(_ int, took time.Duration, err error) {
	if err != nil {
		m.SQLiteCommitErrors.Inc()
		return
	}
	m.SQLiteCommitDur.Observe(took.Seconds())
}

// BreakerChanged tracks the Redis breaker; state is 0 closed, 1 open, 2 half-open.
func (m *Metrics) BreakerChanged(state int, tripped bool) {
	m.RedisCircuitBreakerState.Set(float64(state))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// SetSaturation reports a channel fill ratio.
func (m *Metrics) SetSaturation(name string, length, capacity int) {
	if capacity == 0 {
		return
	}
	m.ChannelSaturationPct.WithLabelValues(name).Set(float64(length) / float64(capacity) * 100)
}
