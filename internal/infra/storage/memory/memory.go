package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

const defaultCapacity = 1000

// RunRepo keeps the most recent quote runs in memory. It is used when no
// database is configured.
type RunRepo struct {
	mu       sync.RWMutex
	runs     []*storage.QuoteRun // oldest first
	capacity int
}

var _ storage.QuoteRunRepository = (*RunRepo)(nil)

// NewRunRepo creates a repository holding at most capacity runs.
func NewRunRepo(capacity int) *RunRepo {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RunRepo{capacity: capacity}
}

func (r *RunRepo) Save(ctx context.Context, run *storage.QuoteRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *run
	r.runs = append(r.runs, &cp)
	if over := len(r.runs) - r.capacity; over > 0 {
		r.runs = append(r.runs[:0:0], r.runs[over:]...)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id uuid.UUID) (*storage.QuoteRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.runs {
		if run.ID == id {
			cp := *run
			return &cp, nil
		}
	}
	return nil, storage.ErrRunNotFound
}

func (r *RunRepo) List(ctx context.Context, filter storage.RunFilter) ([]*storage.QuoteRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*storage.QuoteRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		if !filter.Matches(r.runs[i]) {
			continue
		}
		cp := *r.runs[i]
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *RunRepo) CountByOutcome(
	ctx context.Context,
	chainID domain.ChainID,
	since time.Time,
) (map[quoter.Outcome]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[quoter.Outcome]int)
	for _, run := range r.runs {
		if run.ChainID == chainID && !run.StartedAt.Before(since) {
			counts[run.Outcome]++
		}
	}
	return counts, nil
}

func (r *RunRepo) DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.runs[:0:0]
	for _, run := range r.runs {
		if !run.StartedAt.Before(before) {
			kept = append(kept, run)
		}
	}
	removed := int64(len(r.runs) - len(kept))
	r.runs = kept
	return removed, nil
}
