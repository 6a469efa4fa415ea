// Package redis publishes closed candles to Redis streams and pub/sub
// channels, and reads them back as chart history.
//
// Keys, per symbol and timeframe (e.g. EURUSD, 5M):
//
//	chart:candles:EURUSD:5M         stream, one entry per closed candle
//	chart:candles:latest:EURUSD:5M  last closed candle, with TTL
//	chart:pub:EURUSD:5M             pub/sub channel
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-chartv1/internal/model"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Connect creates a client and pings the server.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if logger != nil {
		logger.Info("connected to redis", slog.String("component", "redis"), slog.String("addr", cfg.Addr))
	}
	return client, nil
}

// StreamKey is the stream holding closed candles of one series.
func StreamKey(symbol string, tf model.Timeframe) string {
	return "chart:candles:" + symbol + ":" + tf.String()
}

// LatestKey holds the last closed candle of one series.
func LatestKey(symbol string, tf model.Timeframe) string {
	return "chart:candles:latest:" + symbol + ":" + tf.String()
}

// Channel is the pub/sub channel for one series.
func Channel(symbol string, tf model.Timeframe) string {
	return "chart:pub:" + symbol + ":" + tf.String()
}

// streamMaxLen keeps roughly a week of candles per stream, at least 500.
func streamMaxLen(tf model.Timeframe) int64 {
	n := int64(7*24*3600) / tf.Seconds()
	if n < 500 {
		n = 500
	}
	return n
}
