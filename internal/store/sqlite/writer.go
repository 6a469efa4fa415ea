// Package sqlite stores closed candles in a local SQLite database and serves
// them back as chart history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-chartv1/internal/id"
	"trading-chartv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath     string // e.g. "data/candles.db"
	BatchSize  int
	FlushDelay time.Duration
	Logger     *slog.Logger

	// OnCommit is called after every batch (optional).
	OnCommit func(n int, took time.Duration, err error)
}

// Writer is a single-goroutine journal of closed candles with transaction
// batching. It implements model.CandleSink.
type Writer struct {
	db  *sql.DB
	cfg WriterConfig
	log *slog.Logger
}

func open(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	return db, nil
}

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = defaultFlushDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	db, err := open(cfg.DBPath, 1)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	w := &Writer{db: db, cfg: cfg, log: cfg.Logger.With(slog.String("component", "sqlite"))}
	w.log.Info("opened database", slog.String("path", cfg.DBPath))
	return w, nil
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol  TEXT    NOT NULL,
			tf      INTEGER NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL    NOT NULL DEFAULT 0,
			id      TEXT    NOT NULL,
			PRIMARY KEY (symbol, tf, ts)
		);
		CREATE INDEX IF NOT EXISTS candles_ts ON candles (ts);
	`)
	return err
}

// Run reads candles from ch and inserts them in batched transactions,
// flushing every BatchSize candles or every FlushDelay, whichever first.
// Blocks until ctx is cancelled or ch is closed.
func (w *Writer) Run(ctx context.Context, ch <-chan model.ClosedCandle) {
	batch := make([]model.ClosedCandle, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.FlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := w.Insert(context.WithoutCancel(ctx), batch)
		if w.cfg.OnCommit != nil {
			w.cfg.OnCommit(len(batch), time.Since(start), err)
		}
		if err != nil {
			w.log.Error("batch insert failed", slog.Int("candles", len(batch)), slog.String("err", err.Error()))
		} else {
			w.log.Debug("committed", slog.Int("candles", len(batch)), slog.Duration("took", time.Since(start)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case c, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, c)
			if len(batch) >= w.cfg.BatchSize {
				flush()
				timer.Reset(w.cfg.FlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(w.cfg.FlushDelay)
		}
	}
}

// Insert upserts candles in a single transaction.
func (w *Writer) Insert(ctx context.Context, candles []model.ClosedCandle) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, tf, ts, open, high, low, close, volume, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cc := range candles {
		c := cc.Candle
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %s %s %s: %w", cc.Symbol, cc.Timeframe, c.OpenTime.Format(time.RFC3339), err)
		}
		_, err := stmt.ExecContext(ctx, cc.Symbol, cc.Timeframe.Seconds(), c.OpenTime.Unix(),
			c.Open, c.High, c.Low, c.Close, c.Volume, id.At(c.OpenTime))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Prune deletes candles opened before cutoff and returns how many went.
func (w *Writer) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx, `DELETE FROM candles WHERE ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	n, _ := res.RowsAffected()
	w.log.Info("pruned candles", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// LastOpenTime returns the newest stored open time for a series, zero if none.
func (w *Writer) LastOpenTime(ctx context.Context, symbol string, tf model.Timeframe) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND tf = ?`, symbol, tf.Seconds(),
	).Scan(&ts)
	if err != nil || !ts.Valid {
		return time.Time{}, err
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
