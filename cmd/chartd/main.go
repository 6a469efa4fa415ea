// Command chartd serves a real-time candlestick chart and renders snapshots.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"trading-chartv1/config"
	"trading-chartv1/internal/logger"
)

// fsys backs settings reads and PNG output.
var fsys = afero.NewOsFs()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chartd",
		Short: "Real-time candlestick chart service",
		Long: `chartd keeps a candlestick chart of one instrument up to date from a
tick feed, computes its indicators, and serves frames, snapshots and
gestures over HTTP.

Process settings come from the environment (and .env); chart settings
(indicators, colors, layer toggles, zoom bounds) from CHART_SETTINGS.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRenderCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the environment config and chart settings and installs the
// default logger.
func setup(service string) (*config.Config, *config.Settings, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.Init(service, cfg.LogFormat, level)

	settings, err := config.LoadSettings(fsys, cfg.SettingsPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chart settings: %w", err)
	}
	return cfg, settings, log, nil
}
