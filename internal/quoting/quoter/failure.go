package quoter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FailureKind tags why a chunk failed.
type FailureKind int

const (
	// Raised by the batch executor and classified from its error text.
	KindBlockHeaderNotFound FailureKind = iota
	KindTimeout
	KindOutOfGas
	KindUnknown

	// Computed over an otherwise successful batch.
	KindBlockConflict
	KindLowSuccessRate
)

// String returns the label used in logs, metrics and error messages.
func (k FailureKind) String() string {
	switch k {
	case KindBlockHeaderNotFound:
		return "BlockHeaderNotFound"
	case KindTimeout:
		return "Timeout"
	case KindOutOfGas:
		return "OutOfGas"
	case KindBlockConflict:
		return "BlockConflict"
	case KindLowSuccessRate:
		return "LowSuccessRate"
	default:
		return "Unknown"
	}
}

// maxFailureMessageLen bounds stored error text; node errors can echo the
// whole multicall calldata.
const maxFailureMessageLen = 500

// Failure is the reason attached to a failed chunk.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func newFailure(kind FailureKind, msg string) *Failure {
	return &Failure{Kind: kind, Message: truncate(msg, maxFailureMessageLen)}
}

// Classify maps a batch executor error onto a transport failure kind.
// Matching is a case-sensitive substring search over the error text, in
// this order: "header not found", "timeout", "out of gas".
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "header not found"):
		return newFailure(KindBlockHeaderNotFound, msg)
	case strings.Contains(msg, "timeout"):
		return newFailure(KindTimeout, msg)
	case strings.Contains(msg, "out of gas"):
		return newFailure(KindOutOfGas, msg)
	default:
		return newFailure(KindUnknown, msg)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var (
	// ErrQuotesFailed matches every *QuotesFailedError.
	ErrQuotesFailed = errors.New("quotes failed")

	// ErrPendingAfterAttempt means a dispatched chunk never resolved.
	ErrPendingAfterAttempt = errors.New("chunk still pending after all dispatched calls resolved")
)

// QuotesFailedError is returned when attempts are exhausted with failed chunks.
type QuotesFailedError struct {
	FailedChunks int
	Attempts     int
	Reasons      []FailureKind // distinct, sorted
}

func (e *QuotesFailedError) Error() string {
	reasons := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		reasons[i] = r.String()
	}
	return fmt.Sprintf("failed to get %d quote chunks after %d attempts, reasons: %s",
		e.FailedChunks, e.Attempts, strings.Join(reasons, ", "))
}

func (e *QuotesFailedError) Is(target error) bool {
	return target == ErrQuotesFailed
}

func newQuotesFailedError(failed []*Chunk, attempts int) *QuotesFailedError {
	seen := make(map[FailureKind]struct{})
	var reasons []FailureKind
	for _, c := range failed {
		kind := KindUnknown
		if c.Failure != nil {
			kind = c.Failure.Kind
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		reasons = append(reasons, kind)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	return &QuotesFailedError{
		FailedChunks: len(failed),
		Attempts:     attempts,
		Reasons:      reasons,
	}
}
