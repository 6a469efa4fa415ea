package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-chartv1/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// PublisherConfig tunes a Publisher.
type PublisherConfig struct {
	MaxFailures  int           // consecutive failures before the breaker opens; default 5
	ResetTimeout time.Duration // default 10s
	MaxBuffer    int           // candles held while open; default 10000
	LatestTTL    time.Duration
	Logger       *slog.Logger

	// Optional metric hooks.
	OnStateChange func(from, to State)
	OnBuffer      func()
	OnFlush       func(n int)
}

// Publisher writes closed candles to Redis through a circuit breaker. While
// the breaker is open candles are buffered, oldest dropped first, and
// replayed once it closes. It implements model.CandleSink.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	cfg    PublisherConfig
	log    *slog.Logger

	// write is the pipelined write; replaced in tests.
	write func(ctx context.Context, batch []model.ClosedCandle) error

	mu     sync.Mutex
	buffer []model.ClosedCandle
	flushC chan struct{}
}

// NewPublisher wraps client.
func NewPublisher(client *goredis.Client, cfg PublisherConfig) *Publisher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 10000
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		cfg:    cfg,
		log:    cfg.Logger.With(slog.String("component", "redis-publisher")),
		flushC: make(chan struct{}, 1),
	}
	p.write = p.pipeline
	p.cb.OnStateChange = func(from, to State) {
		p.log.Warn("circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(from, to)
		}
		if to == StateClosed {
			select {
			case p.flushC <- struct{}{}:
			default:
			}
		}
	}
	return p
}

// Breaker exposes the circuit breaker state.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Run publishes candles from ch until ctx is cancelled or ch is closed.
func (p *Publisher) Run(ctx context.Context, ch <-chan model.ClosedCandle) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.flushC:
			p.flush(ctx)
		case c, ok := <-ch:
			if !ok {
				return
			}
			p.Publish(ctx, c)
		}
	}
}

// Publish writes one candle, buffering it when the breaker is open or the
// write fails.
func (p *Publisher) Publish(ctx context.Context, c model.ClosedCandle) {
	err := p.cb.Execute(func() error { return p.write(ctx, []model.ClosedCandle{c}) })
	if err == nil {
		return
	}
	if err != ErrCircuitOpen {
		p.log.Warn("publish failed", slog.String("symbol", c.Symbol), slog.String("err", err.Error()))
	}
	p.bufferCandle(c)
}

func (p *Publisher) bufferCandle(c model.ClosedCandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) >= p.cfg.MaxBuffer {
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, c)
	if p.cfg.OnBuffer != nil {
		p.cfg.OnBuffer()
	}
}

// flush replays buffered candles in one pipeline.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	pending := p.buffer
	p.buffer = nil
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	err := p.cb.Execute(func() error { return p.write(ctx, pending) })
	if err != nil {
		p.mu.Lock()
		p.buffer = append(pending, p.buffer...)
		if over := len(p.buffer) - p.cfg.MaxBuffer; over > 0 {
			p.buffer = p.buffer[over:]
		}
		p.mu.Unlock()
		return
	}
	p.log.Info("flushed buffered candles", slog.Int("count", len(pending)))
	if p.cfg.OnFlush != nil {
		p.cfg.OnFlush(len(pending))
	}
}

// Pending returns the number of buffered candles.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// pipeline does XADD + SET latest + PUBLISH per candle in one round trip.
func (p *Publisher) pipeline(ctx context.Context, batch []model.ClosedCandle) error {
	pipe := p.client.Pipeline()
	for _, c := range batch {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(c.Symbol, c.Timeframe),
			MaxLen: streamMaxLen(c.Timeframe),
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		})
		pipe.Set(ctx, LatestKey(c.Symbol, c.Timeframe), data, p.cfg.LatestTTL)
		pipe.Publish(ctx, Channel(c.Symbol, c.Timeframe), data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
