package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Sweepable is implemented by lock stores that can bulk-delete expired rows.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper periodically prunes expired lock rows on a cron schedule.
type Sweeper struct {
	store Sweepable
	expr  string
	gron  *gronx.Gronx
}

// NewSweeper creates a sweeper with a cron expression (e.g. "*/5 * * * *").
func NewSweeper(store Sweepable, expr string) *Sweeper {
	return &Sweeper{store: store, expr: expr, gron: gronx.New()}
}

// Run blocks until ctx is cancelled, checking the schedule once a minute.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.gron.IsValid(s.expr) {
		slog.Error("invalid lock sweep cron expression, sweeper disabled", "expr", s.expr)
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.gron.IsDue(s.expr, now)
			if err != nil || !due {
				continue
			}
			n, err := s.store.Sweep(ctx)
			if err != nil {
				slog.Warn("lock sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("swept expired locks", "count", n)
			}
		}
	}
}
