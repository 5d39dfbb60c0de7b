package quoter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/chain"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
)

// errChunksFailed signals the retry loop that another attempt is needed.
var errChunksFailed = errors.New("chunks failed")

// reconfigure is produced by remediation at the end of an attempt and
// consumed once at the top of the next one.
type reconfigure struct {
	params      *BatchParams
	blockNumber *uint64
	retryAll    bool
}

func (r reconfigure) empty() bool {
	return r.params == nil && r.blockNumber == nil && !r.retryAll
}

// coordinator drives the attempts of a single invocation. It is never
// shared: params, blockNumber and state are only touched between attempts.
type coordinator struct {
	log       *slog.Logger
	chainID   domain.ChainID
	executor  chain.BatchExecutor
	target    common.Address
	tradeType domain.TradeType
	opts      Options

	inputs      []CallInput
	params      BatchParams
	blockNumber uint64
	state       *attemptState
	next        reconfigure

	attempts              int
	gasRemediated         bool
	successRateRemediated bool
	blockHeaderAttempts   int
	rolledBack            bool

	report *Report
}

func newCoordinator(
	log *slog.Logger,
	chainID domain.ChainID,
	executor chain.BatchExecutor,
	target common.Address,
	tradeType domain.TradeType,
	opts Options,
	inputs []CallInput,
	blockNumber uint64,
	report *Report,
) *coordinator {
	return &coordinator{
		log:         log,
		chainID:     chainID,
		executor:    executor,
		target:      target,
		tradeType:   tradeType,
		opts:        opts,
		inputs:      inputs,
		params:      opts.Batch,
		blockNumber: blockNumber,
		state:       newAttemptState(inputs, opts.Batch.MaxCallsPerChunk),
		report:      report,
	}
}

// run executes attempts until every chunk succeeds or the retry budget is
// spent. A nil error means every chunk is Success.
func (c *coordinator) run(ctx context.Context) error {
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.attempt(ctx)
		if errors.Is(err, errChunksFailed) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, errChunksFailed) {
		return err
	}

	_, failed, _ := c.state.partition()
	if len(failed) == 0 {
		return nil
	}
	return newQuotesFailedError(failed, c.attempts)
}

func (c *coordinator) backoff() retry.Backoff {
	minTimeout := c.opts.Retry.MinTimeout
	if minTimeout <= 0 {
		minTimeout = time.Millisecond
	}
	maxTimeout := c.opts.Retry.MaxTimeout
	if maxTimeout < minTimeout {
		maxTimeout = minTimeout
	}
	retries := c.opts.Retry.Retries
	if retries < 0 {
		retries = 0
	}

	b := retry.NewExponential(minTimeout)
	b = retry.WithCappedDuration(maxTimeout, b)
	return retry.WithMaxRetries(uint64(retries), b)
}

func (c *coordinator) attempt(ctx context.Context) error {
	c.attempts++
	c.applyReconfigure()

	dispatched := c.state.dispatchable()
	calls := countCalls(dispatched)
	c.report.TotalCalls += calls
	if c.attempts > 1 {
		c.report.RetriedCalls += calls
		metrics.QuoteRetriedCallsTotal.WithLabelValues(c.chainID.String()).Add(float64(calls))
	}
	metrics.QuoteCallsTotal.WithLabelValues(c.chainID.String()).Add(float64(calls))

	c.log.Debug("Dispatching quote chunks",
		"attempt", c.attempts,
		"chunks", len(dispatched),
		"calls", calls,
		"max_calls_per_chunk", c.params.MaxCallsPerChunk,
		"gas_limit_per_call", c.params.GasLimitPerCall,
		"block", c.blockNumber,
	)

	c.dispatch(ctx, dispatched)

	_, _, pending := c.state.partition()
	if len(pending) > 0 {
		return fmt.Errorf("%w: %d chunks on attempt %d", ErrPendingAfterAttempt, len(pending), c.attempts)
	}

	c.validateSuccessRate(dispatched)

	success, _, _ := c.state.partition()
	if conflict := checkBlockConsistency(success); conflict != nil {
		c.log.Warn("Quote chunks disagree on block", "attempt", c.attempts, "error", conflict.Message)
		for _, ch := range success {
			ch.markFailed(conflict)
		}
	}

	_, failed, _ := c.state.partition()
	if len(failed) == 0 {
		return nil
	}

	c.next = c.remediate(failed)
	c.log.Info("Quote attempt failed",
		"attempt", c.attempts,
		"failed_chunks", len(failed),
		"total_chunks", len(c.state.chunks),
		"retry_all", c.next.retryAll,
	)
	return errChunksFailed
}

// applyReconfigure consumes the pending reconfigure event.
func (c *coordinator) applyReconfigure() {
	ev := c.next
	c.next = reconfigure{}
	if ev.empty() {
		return
	}

	if ev.params != nil {
		c.params = *ev.params
	}
	if ev.blockNumber != nil {
		c.blockNumber = *ev.blockNumber
	}
	if ev.retryAll {
		c.state = newAttemptState(c.inputs, c.params.MaxCallsPerChunk)
	}

	c.log.Debug("Applied quote reconfiguration",
		"attempt", c.attempts,
		"chunks", len(c.state.chunks),
		"max_calls_per_chunk", c.params.MaxCallsPerChunk,
		"gas_limit_per_call", c.params.GasLimitPerCall,
		"block", c.blockNumber,
		"retry_all", ev.retryAll,
	)
}

// dispatch sends every chunk concurrently and waits for all of them.
// Each goroutine only writes its own chunk.
func (c *coordinator) dispatch(ctx context.Context, chunks []*Chunk) {
	var g errgroup.Group
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}

	params := c.params
	block := c.blockNumber
	chainLabel := c.chainID.String()

	for _, ch := range chunks {
		ch.reset()
		metrics.QuoteBatchSize.WithLabelValues(chainLabel).Observe(float64(len(ch.Inputs)))

		g.Go(func() error {
			res, err := c.executor.Execute(ctx, chain.BatchRequest{
				Target:          c.target,
				TradeType:       c.tradeType,
				Calldata:        ch.calldata(),
				GasLimitPerCall: params.GasLimitPerCall,
				BlockNumber:     block,
			})
			switch {
			case err != nil:
				ch.markFailed(Classify(err))
			case res == nil:
				// left pending; surfaces as ErrPendingAfterAttempt
			case len(res.Results) != len(ch.Inputs):
				ch.markFailed(newFailure(KindUnknown, fmt.Sprintf(
					"multicall returned %d results for %d calls", len(res.Results), len(ch.Inputs))))
			default:
				ch.markSuccess(res)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// validateSuccessRate downgrades freshly successful chunks whose share of
// successful calls is below the threshold, unless the success-rate
// remediation was already spent.
func (c *coordinator) validateSuccessRate(dispatched []*Chunk) {
	for _, ch := range dispatched {
		if ch.Status != StatusSuccess {
			continue
		}

		rate := successRate(ch.Result.Results)
		if !belowSuccessRate(rate, c.params.MinSuccessRate) {
			continue
		}

		if c.successRateRemediated {
			c.log.Info("Accepting chunk below success rate after retry",
				"attempt", c.attempts,
				"rate", rate,
				"min_rate", c.params.MinSuccessRate,
				"calls", len(ch.Inputs),
			)
			continue
		}

		ch.markFailed(newFailure(KindLowSuccessRate, fmt.Sprintf(
			"success rate %.3f below %.3f over %d calls", rate, c.params.MinSuccessRate, len(ch.Inputs))))
	}
}

// remediate applies at most one remediation per distinct failure kind and
// returns the reconfigure event for the next attempt.
func (c *coordinator) remediate(failed []*Chunk) reconfigure {
	chainLabel := c.chainID.String()

	var ev reconfigure
	handled := make(map[FailureKind]bool)

	for _, ch := range failed {
		kind := ch.Failure.Kind
		c.report.Failures[kind]++
		metrics.QuoteChunkFailures.WithLabelValues(chainLabel, kind.String()).Inc()

		if handled[kind] {
			continue
		}
		handled[kind] = true

		switch kind {
		case KindBlockConflict:
			ev.retryAll = true

		case KindBlockHeaderNotFound:
			c.blockHeaderAttempts++
			rb := c.opts.BlockNumber.Rollback
			if !rb.Enabled || c.rolledBack || c.blockHeaderAttempts < rb.AttemptsBeforeRollback {
				break
			}
			rolled := c.blockNumber - min(rb.RollbackBlockOffset, c.blockNumber)
			c.log.Warn("Rolling back pinned block after header not found",
				"from", c.blockNumber,
				"to", rolled,
				"attempts", c.blockHeaderAttempts,
			)
			ev.blockNumber = &rolled
			ev.retryAll = true
			c.rolledBack = true
			c.report.RolledBack = true
			metrics.QuoteRemediations.WithLabelValues(chainLabel, kind.String()).Inc()

		case KindTimeout:
			c.log.Info("Quote chunk timed out", "attempt", c.attempts, "error", ch.Failure.Message)

		case KindOutOfGas:
			// The override, and the re-chunk that comes with it, is applied
			// once per invocation. Later OutOfGas failures retry their
			// existing slices, which already carry the override.
			if c.gasRemediated {
				break
			}
			c.gasRemediated = true
			ev.params = c.tighten(ev.params, c.opts.GasErrorOverride)
			ev.retryAll = true
			metrics.QuoteRemediations.WithLabelValues(chainLabel, kind.String()).Inc()

		case KindLowSuccessRate:
			if c.successRateRemediated {
				break
			}
			c.successRateRemediated = true
			ev.params = c.tighten(ev.params, c.opts.SuccessRateOverride)
			ev.retryAll = true
			metrics.QuoteRemediations.WithLabelValues(chainLabel, kind.String()).Inc()

		default:
			c.log.Warn("Quote chunk failed", "attempt", c.attempts, "reason", kind, "error", ch.Failure.Message)
		}
	}
	return ev
}

// tighten applies override to the pending params. When two overrides land
// in the same attempt the smaller chunk and the larger gas limit win.
func (c *coordinator) tighten(pending *BatchParams, override GasOverride) *BatchParams {
	p := c.params
	if pending != nil {
		p = *pending
	}

	if override.MaxCallsPerChunk > 0 && (pending == nil || override.MaxCallsPerChunk < p.MaxCallsPerChunk) {
		p.MaxCallsPerChunk = override.MaxCallsPerChunk
	}
	if override.GasLimitPerCall > 0 && (pending == nil || override.GasLimitPerCall > p.GasLimitPerCall) {
		p.GasLimitPerCall = override.GasLimitPerCall
	}
	return &p
}

// results returns the per-call results in original call order.
func (c *coordinator) results() []chain.CallResult {
	out := make([]chain.CallResult, len(c.inputs))
	for _, ch := range c.state.chunks {
		if ch.Result == nil {
			continue
		}
		for i, in := range ch.Inputs {
			out[in.Index] = ch.Result.Results[i]
		}
	}
	return out
}

// approxGasUsedPerSuccessCall is the highest per-chunk value.
func (c *coordinator) approxGasUsedPerSuccessCall() uint64 {
	var gas uint64
	for _, ch := range c.state.chunks {
		if ch.Result != nil {
			gas = max(gas, ch.Result.ApproxGasUsedPerSuccessCall)
		}
	}
	return gas
}

// onlyOutOfGas reports whether every failed chunk ran out of gas.
func onlyOutOfGas(failed []*Chunk) bool {
	for _, ch := range failed {
		if ch.Failure == nil || ch.Failure.Kind != KindOutOfGas {
			return false
		}
	}
	return len(failed) > 0
}
