package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-chartv1/config"
	"trading-chartv1/internal/model"
	sqlitestore "trading-chartv1/internal/store/sqlite"
)

func seedJournal(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.db")
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	t0 := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	batch := make([]model.ClosedCandle, n)
	for i := range batch {
		p := 1.1 + float64(i%9)*0.0003
		batch[i] = model.ClosedCandle{Symbol: "EURUSD", Timeframe: model.M5, Candle: model.Candle{
			OpenTime: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:     p, High: p + 0.0005, Low: p - 0.0005, Close: p + 0.0001, Volume: 3, Closed: true,
		}}
	}
	require.NoError(t, w.Insert(context.Background(), batch))
	return path
}

func TestRenderWritesPNG(t *testing.T) {
	db := seedJournal(t, 60)
	out := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := runRender(context.Background(), out, renderOpts{
		db: db, symbol: "EURUSD", timeframe: "5M", out: "snap.png",
		palette: "light", width: 400, height: 200, limit: 50,
	}, &config.Settings{}, log)
	require.NoError(t, err)

	raw, err := afero.ReadFile(out, "snap.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")))
}

func TestRenderErrors(t *testing.T) {
	db := seedJournal(t, 5)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := renderOpts{db: db, symbol: "EURUSD", timeframe: "5M", out: "x.png", width: 100, height: 100, limit: 10}

	o := base
	o.symbol = "GBPUSD"
	assert.ErrorContains(t, runRender(context.Background(), afero.NewMemMapFs(), o, &config.Settings{}, log), "no candles")

	o = base
	o.timeframe = "2X"
	assert.Error(t, runRender(context.Background(), afero.NewMemMapFs(), o, &config.Settings{}, log))

	o = base
	o.palette = "sepia"
	assert.Error(t, runRender(context.Background(), afero.NewMemMapFs(), o, &config.Settings{}, log))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "chartd version dev")
}
