package quoter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/swapquote/internal/core/domain"
)

// Outcome summarises how an invocation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"    // nothing to quote
	OutcomeGasShim Outcome = "gas_shim" // exhausted on out of gas, empty result by policy
	OutcomeFailed  Outcome = "failed"   // exhausted with failed chunks
	OutcomeError   Outcome = "error"    // encoding, block resolution, cancellation or invariant error
)

// Report is the per-invocation telemetry handed to every Recorder.
type Report struct {
	ID                     uuid.UUID
	ChainID                domain.ChainID
	TradeType              domain.TradeType
	OptimisticCachedRoutes bool

	Routes  int
	Amounts int

	BlockNumber uint64
	RolledBack  bool

	Attempts      int
	Chunks        int
	ExpectedCalls int
	TotalCalls    int
	RetriedCalls  int

	MaxCallsPerChunk            int
	GasLimitPerCall             uint64
	ApproxGasUsedPerSuccessCall uint64

	// Failures counts failed chunks per kind across all attempts.
	Failures map[FailureKind]int

	Outcome Outcome
	Error   string

	StartedAt time.Time
	Latency   time.Duration
}

// FailureCounts returns Failures keyed by kind name.
func (r *Report) FailureCounts() map[string]int {
	out := make(map[string]int, len(r.Failures))
	for k, v := range r.Failures {
		out[k.String()] = v
	}
	return out
}

// Recorder receives one Report per invocation. Implementations must be
// safe for concurrent use and should not block for long.
type Recorder interface {
	Record(ctx context.Context, r *Report)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, r *Report)

func (f RecorderFunc) Record(ctx context.Context, r *Report) { f(ctx, r) }
