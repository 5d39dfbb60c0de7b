// Package quoter prices swap routes by simulating quoter calls in batched
// multicalls against a node, retrying failed batches with adaptive
// batching parameters.
//
// One invocation pairs every route with every amount, splits the calls into
// balanced chunks and runs attempts until all chunks succeed against the
// same block or the retry budget is spent:
//
//	p := quoter.New(domain.ChainIDEthereum, quoterAddr, codec, executor, executor)
//	res, err := p.QuoteExactIn(ctx, amounts, routes, quoter.ProviderConfig{})
//
// A reverted call only nulls the quote of its own (route, amount) pair.
package quoter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/chain"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
)

// CallEncoder turns a (route, amount) pair into quoter calldata.
type CallEncoder interface {
	EncodeQuoteCall(route domain.Route, tradeType domain.TradeType, amount *big.Int) ([]byte, error)
}

// Provider quotes routes on a single chain. It holds no per-invocation
// state and is safe for concurrent use.
type Provider struct {
	chainID   domain.ChainID
	quoter    common.Address
	encoder   CallEncoder
	executor  chain.BatchExecutor
	head      chain.BlockNumberReader
	opts      Options
	gasPolicy ExhaustedGasPolicy
	recorders []Recorder
	log       *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithOptions replaces the default options.
func WithOptions(opts Options) Option {
	return func(p *Provider) { p.opts = opts }
}

// WithExhaustedGasPolicy replaces DefaultExhaustedGasPolicy.
func WithExhaustedGasPolicy(policy ExhaustedGasPolicy) Option {
	return func(p *Provider) { p.gasPolicy = policy }
}

// WithRecorder adds a per-invocation report sink.
func WithRecorder(r Recorder) Option {
	return func(p *Provider) { p.recorders = append(p.recorders, r) }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// New creates a Provider sending quoter calls to quoterAddr.
func New(
	chainID domain.ChainID,
	quoterAddr common.Address,
	encoder CallEncoder,
	executor chain.BatchExecutor,
	head chain.BlockNumberReader,
	opts ...Option,
) *Provider {
	p := &Provider{
		chainID:   chainID,
		quoter:    quoterAddr,
		encoder:   encoder,
		executor:  executor,
		head:      head,
		opts:      DefaultOptions(),
		gasPolicy: DefaultExhaustedGasPolicy,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ChainID returns the chain the provider quotes on.
func (p *Provider) ChainID() domain.ChainID {
	return p.chainID
}

// Options returns the provider's default options.
func (p *Provider) Options() Options {
	return p.opts
}

// QuoteExactIn prices swapping each amount in along each route.
func (p *Provider) QuoteExactIn(
	ctx context.Context,
	amounts []*big.Int,
	routes []domain.Route,
	cfg ProviderConfig,
) (*domain.QuoteResult, error) {
	return p.Quote(ctx, domain.ExactIn, amounts, routes, cfg)
}

// QuoteExactOut prices receiving each amount out along each route.
func (p *Provider) QuoteExactOut(
	ctx context.Context,
	amounts []*big.Int,
	routes []domain.Route,
	cfg ProviderConfig,
) (*domain.QuoteResult, error) {
	return p.Quote(ctx, domain.ExactOut, amounts, routes, cfg)
}

// Quote runs one invocation for the given trade type.
func (p *Provider) Quote(
	ctx context.Context,
	tradeType domain.TradeType,
	amounts []*big.Int,
	routes []domain.Route,
	cfg ProviderConfig,
) (*domain.QuoteResult, error) {
	opts := p.opts
	if cfg.Options != nil {
		opts = *cfg.Options
	}

	report := &Report{
		ID:                     uuid.New(),
		ChainID:                p.chainID,
		TradeType:              tradeType,
		OptimisticCachedRoutes: cfg.OptimisticCachedRoutes,
		Routes:                 len(routes),
		Amounts:                len(amounts),
		ExpectedCalls:          len(routes) * len(amounts),
		MaxCallsPerChunk:       opts.Batch.MaxCallsPerChunk,
		GasLimitPerCall:        opts.Batch.GasLimitPerCall,
		Failures:               make(map[FailureKind]int),
		StartedAt:              time.Now(),
	}
	log := p.log.With("chain", p.chainID.Name(), "trade_type", tradeType, "run_id", report.ID)

	res, err := p.quote(ctx, log, tradeType, amounts, routes, cfg, opts, report)
	p.finish(ctx, log, report, err)
	return res, err
}

func (p *Provider) quote(
	ctx context.Context,
	log *slog.Logger,
	tradeType domain.TradeType,
	amounts []*big.Int,
	routes []domain.Route,
	cfg ProviderConfig,
	opts Options,
	report *Report,
) (*domain.QuoteResult, error) {
	inputs, err := p.encode(tradeType, amounts, routes)
	if err != nil {
		report.Outcome = OutcomeError
		return nil, err
	}
	if len(inputs) == 0 {
		report.Outcome = OutcomeEmpty
		return &domain.QuoteResult{RoutesWithQuotes: []domain.RouteWithQuotes{}}, nil
	}

	blockNumber, err := p.resolveBlock(ctx, cfg, opts)
	if err != nil {
		report.Outcome = OutcomeError
		return nil, err
	}

	c := newCoordinator(log, p.chainID, p.executor, p.quoter, tradeType, opts, inputs, blockNumber, report)
	runErr := c.run(ctx)

	report.Attempts = c.attempts
	report.Chunks = len(c.state.chunks)
	report.BlockNumber = c.blockNumber
	report.MaxCallsPerChunk = c.params.MaxCallsPerChunk
	report.GasLimitPerCall = c.params.GasLimitPerCall
	report.ApproxGasUsedPerSuccessCall = c.approxGasUsedPerSuccessCall()

	if runErr != nil {
		var failedErr *QuotesFailedError
		if !errors.As(runErr, &failedErr) {
			report.Outcome = OutcomeError
			return nil, runErr
		}

		_, failed, _ := c.state.partition()
		if onlyOutOfGas(failed) && p.gasPolicy != nil && p.gasPolicy(p.chainID) {
			log.Error("Quotes exhausted on out of gas, returning no quotes for this chain",
				"failed_chunks", len(failed),
				"attempts", c.attempts,
			)
			report.Outcome = OutcomeGasShim
			return &domain.QuoteResult{RoutesWithQuotes: []domain.RouteWithQuotes{}, BlockNumber: 0}, nil
		}

		report.Outcome = OutcomeFailed
		return nil, runErr
	}

	report.Outcome = OutcomeSuccess
	return &domain.QuoteResult{
		RoutesWithQuotes: assemble(routes, amounts, c.results(), c.params.GasLimitPerCall),
		BlockNumber:      c.blockNumber,
	}, nil
}

// encode builds the route-major call list.
func (p *Provider) encode(
	tradeType domain.TradeType,
	amounts []*big.Int,
	routes []domain.Route,
) ([]CallInput, error) {
	inputs := make([]CallInput, 0, len(routes)*len(amounts))
	for r, route := range routes {
		for _, amount := range amounts {
			data, err := p.encoder.EncodeQuoteCall(route, tradeType, amount)
			if err != nil {
				return nil, fmt.Errorf("encode route %d (%s): %w", r, route, err)
			}
			inputs = append(inputs, CallInput{Index: len(inputs), Calldata: data})
		}
	}
	return inputs, nil
}

func (p *Provider) resolveBlock(ctx context.Context, cfg ProviderConfig, opts Options) (uint64, error) {
	if cfg.BlockNumber != nil {
		n, err := cfg.BlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("resolve block number: %w", err)
		}
		return n, nil
	}

	head, err := p.head.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}

	offset := opts.BlockNumber.BaseBlockOffset
	if offset < 0 && uint64(-offset) > head {
		return 0, fmt.Errorf("block offset %d exceeds head %d", offset, head)
	}
	return uint64(int64(head) + offset), nil
}

func (p *Provider) finish(ctx context.Context, log *slog.Logger, report *Report, err error) {
	report.Latency = time.Since(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
	}

	chainLabel := p.chainID.String()
	metrics.QuoteInvocations.WithLabelValues(chainLabel, string(report.TradeType), string(report.Outcome)).Inc()
	metrics.QuoteLatency.WithLabelValues(
		chainLabel, string(report.TradeType), strconv.FormatBool(report.OptimisticCachedRoutes),
	).Observe(report.Latency.Seconds())
	if report.Attempts > 0 {
		metrics.QuoteAttempts.WithLabelValues(chainLabel).Observe(float64(report.Attempts))
	}
	if report.Outcome == OutcomeSuccess {
		metrics.QuoteApproxGasUsed.WithLabelValues(chainLabel).Set(float64(report.ApproxGasUsedPerSuccessCall))
	}

	attrs := []any{
		"outcome", report.Outcome,
		"block", report.BlockNumber,
		"routes", report.Routes,
		"amounts", report.Amounts,
		"attempts", report.Attempts,
		"chunks", report.Chunks,
		"calls", report.TotalCalls,
		"retried_calls", report.RetriedCalls,
		"latency", report.Latency,
	}
	if len(report.Failures) > 0 {
		attrs = append(attrs, "failures", report.FailureCounts())
	}
	if err != nil {
		log.Warn("Quote invocation failed", append(attrs, "error", err)...)
	} else {
		log.Info("Quote invocation finished", attrs...)
	}

	for _, r := range p.recorders {
		r.Record(ctx, report)
	}
}
