// Package chartd wires a chart session to its feed, sinks, render clock and
// HTTP surfaces.
package chartd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"trading-chartv1/config"
	"trading-chartv1/internal/chart"
	"trading-chartv1/internal/events"
	"trading-chartv1/internal/feed/ws"
	"trading-chartv1/internal/metrics"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	"trading-chartv1/internal/scheduler"
	redisstore "trading-chartv1/internal/store/redis"
	sqlitestore "trading-chartv1/internal/store/sqlite"
	"trading-chartv1/internal/timeframe"
)

const (
	tickBuffer   = 10000
	candleBuffer = 5000
)

// Service is one running chart.
type Service struct {
	cfg  *config.Config
	log  *slog.Logger
	reg  *prometheus.Registry
	prom *metrics.Metrics

	health  *metrics.HealthStatus
	session *chart.Session
	sched   *scheduler.Scheduler
	comp    *render.Compositor
	feed    *ws.Client
	fanout  *events.FanOut
	jobs    *Jobs

	journal   *sqlitestore.Writer
	reader    *sqlitestore.Reader
	rdb       *goredis.Client
	publisher *redisstore.Publisher

	closedIn chan model.ClosedCandle
	unsub    func()
	closers  []func() error
}

// New builds the service. Nothing runs until Run.
func New(cfg *config.Config, settings *config.Settings, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:    cfg,
		log:    logger.With(slog.String("component", "chartd")),
		reg:    prometheus.NewRegistry(),
		health: metrics.NewHealthStatus(),
		comp:   render.NewCompositor(logger),
		jobs:   NewJobs(logger),
	}
	s.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.prom = metrics.New(s.reg)

	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	if err := s.openStores(); err != nil {
		return nil, err
	}

	style, err := settings.Style()
	if err != nil {
		return nil, err
	}
	loader, err := s.historyLoader()
	if err != nil {
		return nil, err
	}

	var sched *scheduler.Scheduler
	s.session, err = chart.NewSession(chart.Options{
		Symbol:       cfg.Symbol,
		Timeframe:    cfg.Timeframe,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Indicators:   settings.IndicatorConfigs(),
		Viewport:     settings.Viewport,
		Style:        style,
		MaxCandles:   cfg.MaxCandles,
		HistoryLimit: cfg.HistoryLimit,
		LoadTimeout:  cfg.LoadTimeout,
		Loader:       loader,
		Logger:       logger,
		Metrics:      &sessionMetrics{Metrics: s.prom, health: s.health},
		OnDirty:      func() { sched.MarkDirty() },
	})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error { s.session.Close(); return nil })

	sched = scheduler.New(s.session, s.comp, scheduler.Options{
		Interval: settings.FrameInterval,
		Logger:   logger,
		Observer: s.prom,
	})
	s.sched = sched
	s.comp.OnLayerError = func(layer string, _ error) {
		s.log.Debug("layer error", slog.String("layer", layer))
	}

	s.feed, err = ws.New(ws.Config{URL: cfg.FeedURL, Symbols: cfg.FeedSymbols}, logger)
	if err != nil {
		return nil, err
	}
	s.feed.OnReconnect = func() {
		s.prom.WSReconnects.Inc()
		s.health.SetFeedConnected(false)
	}
	s.feed.OnDrop = func(reason string) { s.prom.FeedDrops.WithLabelValues(reason).Inc() }

	s.wireSinks()
	ok = true
	return s, nil
}

// sessionMetrics mirrors load state into the health report.
type sessionMetrics struct {
	*metrics.Metrics
	health *metrics.HealthStatus
}

func (m *sessionMetrics) LoadStateChanged(from, to timeframe.State, key timeframe.Key) {
	m.Metrics.LoadStateChanged(from, to, key)
	m.health.SetLoadState(to.String())
}

func (s *Service) openStores() error {
	cfg := s.cfg
	if cfg.SQLitePath != "" {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
		w, err := sqlitestore.New(sqlitestore.WriterConfig{
			DBPath:   cfg.SQLitePath,
			Logger:   s.log,
			OnCommit: s.prom.SQLiteCommitted,
		})
		if err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
		s.journal = w
		s.closers = append(s.closers, w.Close)

		if cfg.HistorySource == "sqlite" {
			r, err := sqlitestore.NewReader(cfg.SQLitePath, s.log)
			if err != nil {
				return fmt.Errorf("sqlite reader: %w", err)
			}
			s.reader = r
			s.closers = append(s.closers, r.Close)
		}
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(context.Background(), redisstore.Config{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		}, s.log)
		if err != nil {
			if cfg.HistorySource == "redis" {
				return err
			}
			s.log.Warn("redis unavailable, continuing without it", slog.String("err", err.Error()))
			return nil
		}
		s.rdb = rdb
		s.publisher = redisstore.NewPublisher(rdb, redisstore.PublisherConfig{
			Logger: s.log,
			OnStateChange: func(_, to redisstore.State) {
				s.prom.BreakerChanged(int(to), to == redisstore.StateOpen)
			},
			OnBuffer: s.prom.RedisBufferedWrites.Inc,
			OnFlush:  func(n int) { s.prom.RedisFlushedWrites.Add(float64(n)) },
		})
		s.closers = append(s.closers, s.publisher.Close)
	}
	return nil
}

func (s *Service) historyLoader() (model.HistoryLoader, error) {
	switch s.cfg.HistorySource {
	case "sqlite":
		if s.reader == nil {
			return nil, errors.New("sqlite history source without a database")
		}
		return s.reader, nil
	case "redis":
		if s.rdb == nil {
			return nil, errors.New("redis history source without a connection")
		}
		return redisstore.NewHistory(s.rdb, s.log), nil
	default:
		return nil, nil
	}
}

// wireSinks fans closed candles out to the journal and the publisher.
func (s *Service) wireSinks() {
	if s.journal == nil && s.publisher == nil {
		return
	}
	s.fanout = events.New(candleBuffer, s.log)
	s.fanout.OnDrop = func(sub string) { s.prom.FanoutDropsTotal.WithLabelValues(sub).Inc() }

	publish, in := events.Input(candleBuffer, func() { s.prom.FanoutDropsTotal.WithLabelValues("input").Inc() })
	s.closedIn = in
	s.unsub = s.session.OnCandleClosed(publish)
}

// Session is the chart being served.
func (s *Service) Session() *chart.Session { return s.session }

// Scheduler is the render clock.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }

// Compositor is the layer stack used for every frame.
func (s *Service) Compositor() *render.Compositor { return s.comp }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. httpLn and metricsLn may be nil to use the configured addresses.
func (s *Service) Run(ctx context.Context, httpLn, metricsLn net.Listener) error {
	defer s.close()

	g, gctx := errgroup.WithContext(ctx)

	if _, err := s.session.Load(gctx, s.session.Key()); err != nil {
		return err
	}

	tickCh := make(chan model.Tick, tickBuffer)
	g.Go(func() error { return s.feed.Start(gctx, tickCh) })
	g.Go(func() error { return s.ingest(gctx, tickCh) })
	g.Go(func() error { return s.sched.Run(gctx) })

	if s.fanout != nil {
		var sinks []model.CandleSink
		var outs []<-chan model.ClosedCandle
		if s.journal != nil {
			sinks, outs = append(sinks, s.journal), append(outs, s.fanout.Subscribe("sqlite"))
		}
		if s.publisher != nil {
			sinks, outs = append(sinks, s.publisher), append(outs, s.fanout.Subscribe("redis"))
		}
		g.Go(func() error { s.fanout.Run(gctx, s.closedIn); return nil })
		for i := range sinks {
			sink, out := sinks[i], outs[i]
			g.Go(func() error { sink.Run(gctx, out); return nil })
		}
		if err := s.jobs.AddEvery("saturation", 5*time.Second, s.reportSaturation); err != nil {
			return err
		}
	}
	if s.journal != nil {
		if err := s.jobs.AddPrune(s.cfg.PruneSchedule, s.journal, s.cfg.Retention()); err != nil {
			return err
		}
	}
	g.Go(func() error { return s.jobs.Run(gctx) })

	g.Go(func() error { return s.health.RunLivenessChecker(gctx, s.rdb, s.journalDB(), 10*time.Second) })

	api := NewAPI(s.session, s.sched, s.comp, s.log)
	g.Go(func() error { return serve(gctx, "api", s.cfg.HTTPAddr, httpLn, api.Handler(), s.log) })
	g.Go(func() error {
		return serve(gctx, "metrics", s.cfg.MetricsAddr, metricsLn, metrics.Handler(s.reg, s.health), s.log)
	})

	s.log.Info("chartd running",
		slog.String("session", s.session.ID()),
		slog.String("key", s.session.Key().String()),
		slog.String("feed", s.cfg.FeedURL))
	return g.Wait()
}

func (s *Service) journalDB() *sql.DB {
	if s.journal == nil {
		return nil
	}
	return s.journal.DB()
}

// ingest applies feed ticks to the session.
func (s *Service) ingest(ctx context.Context, tickCh <-chan model.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-tickCh:
			s.health.SetFeedConnected(true)
			s.health.SetLastTickTime(t.Time)
			s.session.Ingest(t)
		}
	}
}

func (s *Service) reportSaturation() {
	s.prom.SetSaturation("closed_input", len(s.closedIn), cap(s.closedIn))
	for _, st := range s.fanout.ChannelStats() {
		s.prom.SetSaturation("fanout_"+st.Name, st.Len, st.Cap)
	}
}

func (s *Service) close() {
	if s.unsub != nil {
		s.unsub()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("close failed", slog.String("err", err.Error()))
		}
	}
	s.closers = nil
}

// serve runs an HTTP server until ctx is cancelled.
func serve(ctx context.Context, name, addr string, ln net.Listener, h http.Handler, log *slog.Logger) error {
	if ln == nil {
		var lc net.ListenConfig
		var err error
		if ln, err = lc.Listen(ctx, "tcp", addr); err != nil {
			return fmt.Errorf("%s listen: %w", name, err)
		}
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("server", name), slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
