package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"trading-chartv1/internal/model"
)

// Reader serves chart history. It implements model.HistoryLoader.
type Reader struct {
	db  *sql.DB
	log *slog.Logger
}

// NewReader opens a read connection pool.
func NewReader(dbPath string, logger *slog.Logger) (*Reader, error) {
	db, err := open(dbPath, 2)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{db: db, log: logger.With(slog.String("component", "sqlite-reader"))}
	r.log.Info("opened database", slog.String("path", dbPath))
	return r, nil
}

// LoadHistory returns the newest limit candles of a series, oldest first.
func (r *Reader) LoadHistory(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, tf.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// Range returns candles with open time in [from, to), oldest first.
func (r *Reader) Range(ctx context.Context, symbol string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND tf = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, tf.Seconds(), from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.OpenTime = time.Unix(ts, 0).UTC()
		c.Closed = true
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
