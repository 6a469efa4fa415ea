package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trading-chartv1/internal/chartd"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chart service",
		Long: `Connect to the tick feed, journal closed candles to SQLite and Redis,
and serve the chart API on HTTP_ADDR and metrics on METRICS_ADDR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, settings, log, err := setup("chartd")
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc, err := chartd.New(cfg, settings, log)
			if err != nil {
				log.Error("init failed", slog.String("err", err.Error()))
				return err
			}
			if err := svc.Run(ctx, nil, nil); err != nil && err != context.Canceled {
				log.Error("chartd terminated", slog.String("err", err.Error()))
				return err
			}
			log.Info("chartd stopped")
			return nil
		},
	}
}
