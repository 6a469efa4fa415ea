package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"trading-chartv1/config"
	"trading-chartv1/internal/chart"
	"trading-chartv1/internal/chartd"
	"trading-chartv1/internal/model"
	"trading-chartv1/internal/render"
	sqlitestore "trading-chartv1/internal/store/sqlite"
)

type renderOpts struct {
	db        string
	symbol    string
	timeframe string
	out       string
	settings  string
	palette   string
	width     int
	height    int
	limit     int
}

func newRenderCmd() *cobra.Command {
	var o renderOpts
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a PNG snapshot from the candle journal",
		Long: `Load the newest candles of one series from the SQLite journal, compute
the configured indicators and write a PNG snapshot.

Example:
  chartd render --db data/candles.db --symbol EURUSD --tf 5M --out eurusd.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := slog.Default()
			settings, err := config.LoadSettings(fsys, o.settings)
			if err != nil {
				return err
			}
			if err := runRender(cmd.Context(), fsys, o, settings, log); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", o.out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.db, "db", "data/candles.db", "SQLite candle journal")
	f.StringVar(&o.symbol, "symbol", "EURUSD", "instrument")
	f.StringVar(&o.timeframe, "tf", "1M", "timeframe (1M, 5M, 15M, 30M, 1H, 4H, 1D, 1W, 1MN)")
	f.StringVarP(&o.out, "out", "o", "chart.png", "output file")
	f.StringVar(&o.settings, "settings", "chart.yaml", "chart settings file")
	f.StringVar(&o.palette, "palette", "", "color scheme override")
	f.IntVar(&o.width, "width", 1200, "image width")
	f.IntVar(&o.height, "height", 600, "image height")
	f.IntVar(&o.limit, "limit", 500, "candles to load")
	return cmd
}

func runRender(ctx context.Context, out afero.Fs, o renderOpts, settings *config.Settings, log *slog.Logger) error {
	tf, err := model.ParseTimeframe(o.timeframe)
	if err != nil {
		return err
	}
	style, err := settings.Style()
	if err != nil {
		return err
	}
	if o.palette != "" {
		if style.Palette, err = render.LookupPalette(o.palette); err != nil {
			return err
		}
	}

	reader, err := sqlitestore.NewReader(o.db, log)
	if err != nil {
		return err
	}
	defer reader.Close()

	sess, err := chart.NewSession(chart.Options{
		Symbol:       o.symbol,
		Timeframe:    tf,
		Width:        float64(o.width),
		Height:       float64(o.height),
		Indicators:   settings.IndicatorConfigs(),
		Viewport:     settings.Viewport,
		Style:        style,
		HistoryLimit: o.limit,
		Loader:       reader,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := sess.Load(ctx, sess.Key()); err != nil {
		return err
	}
	if err := sess.WaitLoaded(ctx); err != nil {
		return err
	}
	if sess.Len() == 0 {
		return fmt.Errorf("no candles for %s in %s", sess.Key(), o.db)
	}

	var buf bytes.Buffer
	layerErr, err := chartd.WritePNG(&buf, render.NewCompositor(log), sess.Snapshot())
	if err != nil {
		return err
	}
	if layerErr != nil {
		log.Warn("rendered with layer errors", slog.String("err", layerErr.Error()))
	}
	return afero.WriteFile(out, o.out, buf.Bytes(), 0o644)
}
