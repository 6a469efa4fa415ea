// Command tickserver is a demo WebSocket tick feed for chartd.
// It broadcasts random-walk forex and metals ticks as model.Tick JSON:
//
//	{"symbol":"EURUSD","price":1.10342,"volume":3,"ts":"2024-01-03T10:00:00.1Z"}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR  listen address (default ":8765")
//	TICK_SYMBOLS      comma-separated symbols (default "EURUSD,GBPUSD,XAUUSD")
//	TICK_INTERVAL     broadcast interval (default "100ms")
//	LOG_LEVEL, LOG_FORMAT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"trading-chartv1/internal/logger"
)

type config struct {
	Addr      string        `env:"TICK_SERVER_ADDR" envDefault:":8765"`
	Symbols   []string      `env:"TICK_SYMBOLS" envDefault:"EURUSD,GBPUSD,XAUUSD" envSeparator:","`
	Interval  time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string        `env:"LOG_FORMAT" envDefault:"text"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "tickserver:", err)
		os.Exit(1)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tickserver:", err)
		os.Exit(1)
	}
	log := logger.Init("tickserver", cfg.LogFormat, level)

	walkers, err := newWalkers(cfg.Symbols, time.Now().UnixNano())
	if err != nil {
		log.Error("bad TICK_SYMBOLS", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	h := newHub(log)
	go runGenerator(ctx, h, walkers, cfg.Interval)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"tickserver","clients":%d}`+"\n", h.count())
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening",
		slog.String("addr", cfg.Addr),
		slog.Any("symbols", cfg.Symbols),
		slog.Duration("interval", cfg.Interval))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
