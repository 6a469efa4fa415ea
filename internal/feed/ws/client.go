// Package ws is a websocket tick feed client. It connects to a plain-JSON
// tick server (see cmd/tickserver) and pushes model.Tick values to the chart.
//
// Wire format, one JSON object per text message:
//
//	{"symbol":"EURUSD","price":1.08542,"volume":3,"ts":"2024-01-03T10:00:00.123Z"}
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"trading-chartv1/internal/model"
)

// Config holds connection settings.
type Config struct {
	// URL of the tick server, e.g. "ws://localhost:9001/ws".
	URL string

	// Symbols filters ticks; empty accepts everything.
	Symbols []string

	// ReconnectDelay is the initial backoff. Defaults to 2s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client streams ticks from a websocket server.
type Client struct {
	cfg     Config
	symbols map[string]bool
	log     *slog.Logger

	// OnReconnect is called before every reconnect attempt (optional).
	OnReconnect func()
	// OnDrop is called when a tick is discarded: parse error, filtered or
	// channel full (optional).
	OnDrop func(reason string)
}

// New validates cfg and returns a client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed: unsupported scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cfg: cfg, log: logger.With(slog.String("component", "feed"))}
	if len(cfg.Symbols) > 0 {
		c.symbols = make(map[string]bool, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			c.symbols[strings.ToUpper(s)] = true
		}
	}
	return c, nil
}

// Start streams ticks into tickCh until ctx is cancelled, reconnecting with
// exponential backoff.
func (c *Client) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if connected {
			delay = c.cfg.ReconnectDelay
		}

		c.log.Warn("disconnected, reconnecting", slog.String("err", err.Error()), slog.Duration("delay", delay))
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes one connection and reads until disconnect. A nil error means
// ctx was cancelled.
func (c *Client) runOnce(ctx context.Context, tickCh chan<- model.Tick) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.log.Info("connected", slog.String("url", c.cfg.URL))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		tick, ok := c.decode(raw)
		if !ok {
			continue
		}
		select {
		case tickCh <- tick:
		default:
			c.drop("channel_full")
		}
	}
}

func (c *Client) decode(raw []byte) (model.Tick, bool) {
	var tick model.Tick
	if err := json.Unmarshal(raw, &tick); err != nil {
		c.log.Debug("parse error", slog.String("err", err.Error()), slog.String("raw", string(raw)))
		c.drop("parse")
		return tick, false
	}
	tick.Symbol = strings.ToUpper(tick.Symbol)
	if tick.Symbol == "" || tick.Time.IsZero() {
		c.drop("incomplete")
		return tick, false
	}
	if c.symbols != nil && !c.symbols[tick.Symbol] {
		c.drop("filtered")
		return tick, false
	}
	return tick, true
}

func (c *Client) drop(reason string) {
	if c.OnDrop != nil {
		c.OnDrop(reason)
	}
}
