package chartd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes journal rows older than cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Jobs runs periodic maintenance on a cron clock.
type Jobs struct {
	cron *cron.Cron
	log  *slog.Logger
	now  func() time.Time
	ctx  context.Context
}

// NewJobs returns an empty job table using five-field cron specs.
func NewJobs(logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		cron: cron.New(),
		log:  logger.With(slog.String("component", "jobs")),
		now:  time.Now,
		ctx:  context.Background(),
	}
}

// AddPrune schedules journal retention.
func (j *Jobs) AddPrune(spec string, p Pruner, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("jobs: retention must be positive, got %s", retention)
	}
	if _, err := j.cron.AddFunc(spec, func() { j.prune(p, retention) }); err != nil {
		return fmt.Errorf("register prune job: %w", err)
	}
	return nil
}

// AddEvery schedules fn at a fixed interval.
func (j *Jobs) AddEvery(name string, every time.Duration, fn func()) error {
	if _, err := j.cron.AddFunc("@every "+every.String(), fn); err != nil {
		return fmt.Errorf("register %s job: %w", name, err)
	}
	return nil
}

// Len is the number of registered jobs.
func (j *Jobs) Len() int { return len(j.cron.Entries()) }

func (j *Jobs) prune(p Pruner, retention time.Duration) {
	cutoff := j.now().Add(-retention)
	ctx, cancel := context.WithTimeout(j.ctx, time.Minute)
	defer cancel()
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		j.log.Error("prune failed", slog.String("err", err.Error()))
		return
	}
	j.log.Info("pruned journal", slog.Int64("rows", n), slog.Time("cutoff", cutoff))
}

// Run starts the clock and blocks until ctx is cancelled, then waits for
// running jobs.
func (j *Jobs) Run(ctx context.Context) error {
	j.ctx = ctx
	j.cron.Start()
	j.log.Info("jobs started", slog.Int("count", j.Len()))
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.log.Info("jobs stopped")
	return nil
}
