package quoter

import (
	"fmt"
	"sort"

	"github.com/vietddude/swapquote/internal/infra/chain"
)

// successRate is the fraction of individually successful calls in a batch.
func successRate(results []chain.CallResult) float64 {
	if len(results) == 0 {
		return 0
	}
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(results))
}

// belowSuccessRate reports whether rate fails the threshold. The threshold
// itself passes.
func belowSuccessRate(rate, minRate float64) bool {
	return rate < minRate
}

// checkBlockConsistency returns a BlockConflict failure when the given
// successful chunks were computed against more than one block.
func checkBlockConsistency(chunks []*Chunk) *Failure {
	heights := make(map[uint64]struct{})
	for _, c := range chunks {
		if c.Result != nil {
			heights[c.Result.BlockNumber] = struct{}{}
		}
	}
	if len(heights) <= 1 {
		return nil
	}

	distinct := make([]uint64, 0, len(heights))
	for h := range heights {
		distinct = append(distinct, h)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	return newFailure(KindBlockConflict,
		fmt.Sprintf("chunks returned results for different blocks: %v", distinct))
}
