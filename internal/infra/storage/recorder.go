package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

const saveTimeout = 3 * time.Second

// RunRecorder persists every quote report to a repository.
type RunRecorder struct {
	repo QuoteRunRepository
	log  *slog.Logger
}

var _ quoter.Recorder = (*RunRecorder)(nil)

// NewRunRecorder creates a recorder writing to repo.
func NewRunRecorder(repo QuoteRunRepository, log *slog.Logger) *RunRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &RunRecorder{repo: repo, log: log}
}

// Record saves r. A storage failure is logged and never reaches the caller.
func (rr *RunRecorder) Record(ctx context.Context, r *quoter.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := rr.repo.Save(ctx, RunFromReport(r)); err != nil {
		rr.log.Warn("Failed to save quote run", "id", r.ID, "chain", r.ChainID, "error", err)
	}
}
