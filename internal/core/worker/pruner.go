package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/swapquote/internal/infra/storage"
)

// RunPruner deletes quote runs older than the retention period.
type RunPruner struct {
	retention time.Duration
	runs      storage.QuoteRunRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewRunPruner creates a new RunPruner worker.
func NewRunPruner(retention time.Duration, runs storage.QuoteRunRepository, log *slog.Logger) *RunPruner {
	if log == nil {
		log = slog.Default()
	}
	return &RunPruner{
		retention: retention,
		runs:      runs,
		log:       log,
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *RunPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// 10% of retention, clamped to [1m, 1h]
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune removes expired runs once.
func (p *RunPruner) Prune(ctx context.Context) {
	threshold := p.now().Add(-p.retention)

	removed, err := p.runs.DeleteRunsOlderThan(ctx, threshold)
	if err != nil {
		p.log.Error("failed to prune quote runs", "before", threshold, "error", err)
		return
	}
	if removed > 0 {
		p.log.Debug("pruned quote runs", "removed", removed, "before", threshold)
	}
}
