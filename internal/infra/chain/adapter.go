package chain

import "github.com/vietddude/swapquote/internal/core/domain"

// Adapter is everything the quoter needs from one chain: the head height
// and a way to run batched quoter calls against a pinned block.
type Adapter interface {
	BlockNumberReader
	BatchExecutor

	// GetChainID returns the chain identifier
	GetChainID() domain.ChainID
}
