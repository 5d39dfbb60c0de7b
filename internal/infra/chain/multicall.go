package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vietddude/swapquote/internal/core/domain"
)

// BlockNumberReader reads the current chain head.
type BlockNumberReader interface {
	// GetLatestBlock returns the latest block number on the chain
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// BatchExecutor issues one aggregated read-only call for a batch of quoter calls.
// Implementations return a transport error (free-text message) when the whole
// batch fails; individual reverted calls are reported through CallResult.Success.
type BatchExecutor interface {
	Execute(ctx context.Context, req BatchRequest) (*BatchResponse, error)
}

// BatchRequest describes one aggregated call.
type BatchRequest struct {
	// Target is the contract each call is sent to (the quoter).
	Target common.Address

	// TradeType selects the quoter function used to decode return data.
	TradeType domain.TradeType

	// Calldata holds one encoded quoter call per item.
	Calldata [][]byte

	// GasLimitPerCall caps the gas forwarded to each inner call.
	GasLimitPerCall uint64

	// BlockNumber pins the state the calls are simulated against.
	BlockNumber uint64
}

// BatchResponse is the outcome of a successful aggregated call.
type BatchResponse struct {
	// BlockNumber is the height the node computed the results against.
	BlockNumber uint64

	// Results has one entry per request calldata, in request order.
	Results []CallResult

	// ApproxGasUsedPerSuccessCall is the highest gas used by a successful inner call.
	ApproxGasUsedPerSuccessCall uint64
}

// CallResult is the outcome of a single inner call.
type CallResult struct {
	Success bool
	Values  *domain.QuoteValues // nil when Success is false
	GasUsed uint64
}
