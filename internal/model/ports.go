package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the chart session from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or more.

// HistoryLoader fetches closed candles for a symbol and timeframe, oldest first.
// Implementations must honour ctx cancellation.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// CandleSink receives candles as they close.
type CandleSink interface {
	// Run reads closed candles from ch until ctx is cancelled or ch is closed.
	Run(ctx context.Context, ch <-chan ClosedCandle)

	// Close releases underlying resources.
	Close() error
}

// ClosedCandle is a finalized candle tagged with the series it came from.
type ClosedCandle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"tf"`
	Candle    Candle    `json:"candle"`
}
