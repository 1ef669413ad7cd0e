package retention

import (
	"context"
	"log/slog"
	"time"

	"selsup/crptgateway/internal/core/audit"
)

// Purger is the part of audit.Repository the janitor needs.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Purger = (audit.Repository)(nil)

// Janitor deletes CRPT exchange records older than the retention period.
type Janitor struct {
	repo      Purger
	log       *slog.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewJanitor returns nil when retention or interval is not positive, which
// Run treats as "keep everything".
func NewJanitor(repo Purger, log *slog.Logger, retention, interval time.Duration) *Janitor {
	if repo == nil || retention <= 0 || interval <= 0 {
		return nil
	}
	return &Janitor{
		repo:      repo,
		log:       log,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// PurgeOnce runs one retention pass.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.log.WarnContext(ctx, "audit retention pass failed", "error", err, "cutoff", cutoff)
		return 0, err
	}
	if n > 0 {
		j.log.InfoContext(ctx, "audit records purged", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run purges immediately and then on every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j == nil {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		_, _ = j.PurgeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
