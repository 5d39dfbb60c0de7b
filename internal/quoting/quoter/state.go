package quoter

import (
	"github.com/vietddude/swapquote/internal/infra/chain"
	"github.com/vietddude/swapquote/internal/quoting/chunker"
)

// ChunkStatus is the state of one chunk within an invocation.
type ChunkStatus int

const (
	StatusPending ChunkStatus = iota
	StatusSuccess
	StatusFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// CallInput is one encoded (route, amount) call and its position in the
// route-major call matrix.
type CallInput struct {
	Index    int
	Calldata []byte
}

// Chunk is a contiguous slice of inputs sent as one aggregated call.
// Result is set on success, Failure on failure.
type Chunk struct {
	Inputs  []CallInput
	Status  ChunkStatus
	Result  *chain.BatchResponse
	Failure *Failure
}

func (c *Chunk) markSuccess(res *chain.BatchResponse) {
	c.Status = StatusSuccess
	c.Result = res
	c.Failure = nil
}

func (c *Chunk) markFailed(f *Failure) {
	c.Status = StatusFailed
	c.Result = nil
	c.Failure = f
}

func (c *Chunk) reset() {
	c.Status = StatusPending
	c.Result = nil
	c.Failure = nil
}

func (c *Chunk) calldata() [][]byte {
	data := make([][]byte, len(c.Inputs))
	for i, in := range c.Inputs {
		data[i] = in.Calldata
	}
	return data
}

// attemptState holds every chunk of the invocation at one attempt.
type attemptState struct {
	chunks []*Chunk
}

func newAttemptState(inputs []CallInput, maxCallsPerChunk int) *attemptState {
	groups := chunker.Balanced(inputs, maxCallsPerChunk)
	chunks := make([]*Chunk, len(groups))
	for i, g := range groups {
		chunks[i] = &Chunk{Inputs: g}
	}
	return &attemptState{chunks: chunks}
}

func (s *attemptState) partition() (success, failed, pending []*Chunk) {
	for _, c := range s.chunks {
		switch c.Status {
		case StatusSuccess:
			success = append(success, c)
		case StatusFailed:
			failed = append(failed, c)
		default:
			pending = append(pending, c)
		}
	}
	return success, failed, pending
}

// dispatchable returns every chunk that has not succeeded yet.
func (s *attemptState) dispatchable() []*Chunk {
	var out []*Chunk
	for _, c := range s.chunks {
		if c.Status != StatusSuccess {
			out = append(out, c)
		}
	}
	return out
}

func countCalls(chunks []*Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len(c.Inputs)
	}
	return n
}
