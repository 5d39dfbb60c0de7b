package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/storage"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

func newRun(chain domain.ChainID, outcome quoter.Outcome, started time.Time) *storage.QuoteRun {
	return &storage.QuoteRun{
		ID:        uuid.New(),
		ChainID:   chain,
		TradeType: domain.ExactIn,
		Outcome:   outcome,
		StartedAt: started,
	}
}

func TestRunRepo_SaveAndGet(t *testing.T) {
	repo := NewRunRepo(10)
	ctx := context.Background()

	run := newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, time.Now())
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != run.ID || got.Outcome != quoter.OutcomeSuccess {
		t.Errorf("unexpected run %+v", got)
	}

	if _, err := repo.Get(ctx, uuid.New()); err != storage.ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunRepo_ListNewestFirstWithFilter(t *testing.T) {
	repo := NewRunRepo(10)
	ctx := context.Background()
	base := time.Now()

	runs := []*storage.QuoteRun{
		newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, base),
		newRun(domain.ChainIDPolygon, quoter.OutcomeFailed, base.Add(time.Second)),
		newRun(domain.ChainIDEthereum, quoter.OutcomeFailed, base.Add(2*time.Second)),
		newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, base.Add(3*time.Second)),
	}
	for _, r := range runs {
		_ = repo.Save(ctx, r)
	}

	all, _ := repo.List(ctx, storage.RunFilter{})
	if len(all) != 4 || all[0].ID != runs[3].ID {
		t.Fatalf("expected newest first, got %d runs", len(all))
	}

	eth, _ := repo.List(ctx, storage.RunFilter{ChainID: domain.ChainIDEthereum, Limit: 2})
	if len(eth) != 2 || eth[0].ID != runs[3].ID || eth[1].ID != runs[2].ID {
		t.Errorf("unexpected filtered list %+v", eth)
	}

	failed, _ := repo.List(ctx, storage.RunFilter{Outcome: quoter.OutcomeFailed})
	if len(failed) != 2 {
		t.Errorf("expected 2 failed runs, got %d", len(failed))
	}
}

func TestRunRepo_Capacity(t *testing.T) {
	repo := NewRunRepo(2)
	ctx := context.Background()

	first := newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, time.Now())
	_ = repo.Save(ctx, first)
	_ = repo.Save(ctx, newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, time.Now()))
	_ = repo.Save(ctx, newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, time.Now()))

	all, _ := repo.List(ctx, storage.RunFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 runs kept, got %d", len(all))
	}
	if _, err := repo.Get(ctx, first.ID); err != storage.ErrRunNotFound {
		t.Error("expected oldest run evicted")
	}
}

func TestRunRepo_CountByOutcome(t *testing.T) {
	repo := NewRunRepo(10)
	ctx := context.Background()
	now := time.Now()

	_ = repo.Save(ctx, newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, now.Add(-time.Hour)))
	_ = repo.Save(ctx, newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, now))
	_ = repo.Save(ctx, newRun(domain.ChainIDEthereum, quoter.OutcomeGasShim, now))
	_ = repo.Save(ctx, newRun(domain.ChainIDBase, quoter.OutcomeFailed, now))

	counts, err := repo.CountByOutcome(ctx, domain.ChainIDEthereum, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[quoter.OutcomeSuccess] != 1 || counts[quoter.OutcomeGasShim] != 1 || counts[quoter.OutcomeFailed] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestRunRecorder_SavesReport(t *testing.T) {
	repo := NewRunRepo(10)
	rec := storage.NewRunRecorder(repo, nil)

	report := &quoter.Report{
		ID:       uuid.New(),
		ChainID:  domain.ChainIDArbitrumOne,
		Outcome:  quoter.OutcomeGasShim,
		Attempts: 3,
		Failures: map[quoter.FailureKind]int{quoter.KindOutOfGas: 3},
	}
	rec.Record(context.Background(), report)

	got, err := repo.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("expected run saved: %v", err)
	}
	if got.Attempts != 3 || got.Failures["OutOfGas"] != 3 {
		t.Errorf("unexpected run %+v", got)
	}
}

func TestRunRepo_DeleteRunsOlderThan(t *testing.T) {
	repo := NewRunRepo(10)
	ctx := context.Background()
	now := time.Now()

	old := newRun(domain.ChainIDEthereum, quoter.OutcomeSuccess, now.Add(-2*time.Hour))
	recent := newRun(domain.ChainIDEthereum, quoter.OutcomeFailed, now)
	_ = repo.Save(ctx, old)
	_ = repo.Save(ctx, recent)

	removed, err := repo.DeleteRunsOlderThan(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := repo.Get(ctx, old.ID); err != storage.ErrRunNotFound {
		t.Errorf("expected old run gone, got %v", err)
	}
	if _, err := repo.Get(ctx, recent.ID); err != nil {
		t.Errorf("expected recent run kept, got %v", err)
	}
}
