package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"trading-chartv1/internal/model"
)

// History reads closed candles back from the streams written by Publisher.
// It implements model.HistoryLoader.
type History struct {
	client *goredis.Client
	log    *slog.Logger
}

// NewHistory wraps client.
func NewHistory(client *goredis.Client, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{client: client, log: logger.With(slog.String("component", "redis-history"))}
}

// LoadHistory returns the newest limit candles, oldest first.
func (h *History) LoadHistory(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	msgs, err := h.client.XRevRangeN(ctx, StreamKey(symbol, tf), "+", "-", int64(limit)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", StreamKey(symbol, tf), err)
	}
	return decodeHistory(msgs, h.log), nil
}

// decodeHistory reverses newest-first stream entries and drops undecodable
// or duplicate ones.
func decodeHistory(msgs []goredis.XMessage, log *slog.Logger) []model.Candle {
	out := make([]model.Candle, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var cc model.ClosedCandle
		if err := json.Unmarshal([]byte(raw), &cc); err != nil {
			log.Debug("skipping bad stream entry", slog.String("id", msgs[i].ID), slog.String("err", err.Error()))
			continue
		}
		c := cc.Candle
		c.Closed = true
		if n := len(out); n > 0 && !c.OpenTime.After(out[n-1].OpenTime) {
			// replayed after a breaker flush; keep the later write
			if c.OpenTime.Equal(out[n-1].OpenTime) {
				out[n-1] = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
