package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

var (
	// ErrRunNotFound is returned when a quote run doesn't exist
	ErrRunNotFound = errors.New("quote run not found")
)

// QuoteRun is the persisted form of one quote invocation report.
type QuoteRun struct {
	ID         uuid.UUID        `json:"id"`
	ChainID    domain.ChainID   `json:"chain_id"`
	TradeType  domain.TradeType `json:"trade_type"`
	Optimistic bool             `json:"optimistic"`

	Routes  int `json:"routes"`
	Amounts int `json:"amounts"`

	BlockNumber uint64 `json:"block_number"`
	RolledBack  bool   `json:"rolled_back"`

	Attempts      int `json:"attempts"`
	Chunks        int `json:"chunks"`
	ExpectedCalls int `json:"expected_calls"`
	TotalCalls    int `json:"total_calls"`
	RetriedCalls  int `json:"retried_calls"`

	MaxCallsPerChunk            int    `json:"max_calls_per_chunk"`
	GasLimitPerCall             uint64 `json:"gas_limit_per_call"`
	ApproxGasUsedPerSuccessCall uint64 `json:"approx_gas_used_per_success_call"`

	Failures map[string]int `json:"failures"`
	Outcome  quoter.Outcome `json:"outcome"`
	Error    string         `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Latency   time.Duration `json:"latency_ns"`
}

// RunFromReport converts a quoter report into a storable run.
func RunFromReport(r *quoter.Report) *QuoteRun {
	return &QuoteRun{
		ID:                          r.ID,
		ChainID:                     r.ChainID,
		TradeType:                   r.TradeType,
		Optimistic:                  r.OptimisticCachedRoutes,
		Routes:                      r.Routes,
		Amounts:                     r.Amounts,
		BlockNumber:                 r.BlockNumber,
		RolledBack:                  r.RolledBack,
		Attempts:                    r.Attempts,
		Chunks:                      r.Chunks,
		ExpectedCalls:               r.ExpectedCalls,
		TotalCalls:                  r.TotalCalls,
		RetriedCalls:                r.RetriedCalls,
		MaxCallsPerChunk:            r.MaxCallsPerChunk,
		GasLimitPerCall:             r.GasLimitPerCall,
		ApproxGasUsedPerSuccessCall: r.ApproxGasUsedPerSuccessCall,
		Failures:                    r.FailureCounts(),
		Outcome:                     r.Outcome,
		Error:                       r.Error,
		StartedAt:                   r.StartedAt,
		Latency:                     r.Latency,
	}
}

// RunFilter narrows List results. Zero values match everything.
type RunFilter struct {
	ChainID domain.ChainID
	Outcome quoter.Outcome
	Limit   int
}

// Matches reports whether run passes the filter, ignoring Limit.
func (f RunFilter) Matches(run *QuoteRun) bool {
	if f.ChainID != 0 && run.ChainID != f.ChainID {
		return false
	}
	if f.Outcome != "" && run.Outcome != f.Outcome {
		return false
	}
	return true
}

// QuoteRunRepository handles quote run storage operations
type QuoteRunRepository interface {
	// Save stores a run
	Save(ctx context.Context, run *QuoteRun) error

	// Get retrieves a run by id
	Get(ctx context.Context, id uuid.UUID) (*QuoteRun, error)

	// List returns the newest runs first
	List(ctx context.Context, filter RunFilter) ([]*QuoteRun, error)

	// CountByOutcome counts runs for a chain started at or after since
	CountByOutcome(ctx context.Context, chainID domain.ChainID, since time.Time) (map[quoter.Outcome]int, error)

	// DeleteRunsOlderThan removes runs started before the threshold and
	// returns how many were removed
	DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error)
}
