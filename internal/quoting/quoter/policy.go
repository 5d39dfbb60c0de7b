package quoter

import "github.com/vietddude/swapquote/internal/core/domain"

// ExhaustedGasPolicy decides whether an invocation whose attempts ran out
// with nothing but out of gas failures returns an empty result instead of
// an error.
type ExhaustedGasPolicy func(chainID domain.ChainID) bool

// DefaultExhaustedGasPolicy enables the empty result on Arbitrum One, whose
// gas accounting makes large multicalls fail with out of gas regardless of
// the per-call limit.
func DefaultExhaustedGasPolicy(chainID domain.ChainID) bool {
	return chainID == domain.ChainIDArbitrumOne
}

// NeverEmptyOnGas always surfaces the aggregate error.
func NeverEmptyOnGas(domain.ChainID) bool { return false }
