package quoter

import (
	"context"
	"time"
)

// RetryOptions paces the attempt loop.
type RetryOptions struct {
	// Retries is the number of attempts after the first one. Merge treats
	// 0 as unset, so an override cannot lower it to zero; use
	// WithOptions on the Provider for single-attempt quoting.
	Retries    int           `yaml:"retries"`
	MinTimeout time.Duration `yaml:"min_timeout"`
	MaxTimeout time.Duration `yaml:"max_timeout"`
}

// BatchParams are the batching knobs the coordinator adapts between attempts.
type BatchParams struct {
	MaxCallsPerChunk int     `yaml:"max_calls_per_chunk"`
	GasLimitPerCall  uint64  `yaml:"gas_limit_per_call"`
	// MinSuccessRate 0 reads as unset in Merge and keeps the base value.
	// Use a tiny positive rate such as 0.0001 to accept almost anything.
	MinSuccessRate   float64 `yaml:"min_success_rate"`
}

// GasOverride replaces the batching knobs after a specific failure.
type GasOverride struct {
	MaxCallsPerChunk int    `yaml:"max_calls_per_chunk"`
	GasLimitPerCall  uint64 `yaml:"gas_limit_per_call"`
}

// RollbackConfig controls moving the pinned block back after repeated
// "header not found" failures.
type RollbackConfig struct {
	// Enabled can only be switched on by Merge. A chain cannot disable a
	// rollback enabled in the global quoter section.
	Enabled                bool   `yaml:"enabled"`
	AttemptsBeforeRollback int    `yaml:"attempts_before_rollback"`
	RollbackBlockOffset    uint64 `yaml:"rollback_block_offset"`
}

// BlockNumberConfig selects the pinned block when none is given.
type BlockNumberConfig struct {
	// BaseBlockOffset is added to the head (usually zero or negative).
	BaseBlockOffset int64          `yaml:"base_block_offset"`
	Rollback        RollbackConfig `yaml:"rollback"`
}

// Options is the full configuration surface of a Provider.
type Options struct {
	Retry               RetryOptions      `yaml:"retry"`
	Batch               BatchParams       `yaml:"batch"`
	GasErrorOverride    GasOverride       `yaml:"gas_error_override"`
	SuccessRateOverride GasOverride       `yaml:"success_rate_override"`
	BlockNumber         BlockNumberConfig `yaml:"block_number"`

	// MaxConcurrency bounds in-flight chunks per attempt; 0 means unbounded.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// DefaultOptions returns the settings used for mainnet-like chains.
func DefaultOptions() Options {
	return Options{
		Retry: RetryOptions{
			Retries:    2,
			MinTimeout: 25 * time.Millisecond,
			MaxTimeout: 250 * time.Millisecond,
		},
		Batch: BatchParams{
			MaxCallsPerChunk: 150,
			GasLimitPerCall:  1_000_000,
			MinSuccessRate:   0.2,
		},
		GasErrorOverride: GasOverride{
			MaxCallsPerChunk: 100,
			GasLimitPerCall:  1_500_000,
		},
		SuccessRateOverride: GasOverride{
			MaxCallsPerChunk: 110,
			GasLimitPerCall:  1_300_000,
		},
		BlockNumber: BlockNumberConfig{
			Rollback: RollbackConfig{
				Enabled:                false,
				AttemptsBeforeRollback: 1,
				RollbackBlockOffset:    10,
			},
		},
	}
}

// Merge returns o with every non-zero field of override applied on top.
// Booleans cannot be told apart from their zero value, so
// BlockNumber.Rollback.Enabled is only ever switched on by an override.
func (o Options) Merge(override Options) Options {
	r := override.Retry
	if r.Retries > 0 {
		o.Retry.Retries = r.Retries
	}
	if r.MinTimeout > 0 {
		o.Retry.MinTimeout = r.MinTimeout
	}
	if r.MaxTimeout > 0 {
		o.Retry.MaxTimeout = r.MaxTimeout
	}

	b := override.Batch
	if b.MaxCallsPerChunk > 0 {
		o.Batch.MaxCallsPerChunk = b.MaxCallsPerChunk
	}
	if b.GasLimitPerCall > 0 {
		o.Batch.GasLimitPerCall = b.GasLimitPerCall
	}
	if b.MinSuccessRate > 0 {
		o.Batch.MinSuccessRate = b.MinSuccessRate
	}

	o.GasErrorOverride = o.GasErrorOverride.merge(override.GasErrorOverride)
	o.SuccessRateOverride = o.SuccessRateOverride.merge(override.SuccessRateOverride)

	bn := override.BlockNumber
	if bn.BaseBlockOffset != 0 {
		o.BlockNumber.BaseBlockOffset = bn.BaseBlockOffset
	}
	if bn.Rollback.Enabled {
		o.BlockNumber.Rollback.Enabled = true
	}
	if bn.Rollback.AttemptsBeforeRollback > 0 {
		o.BlockNumber.Rollback.AttemptsBeforeRollback = bn.Rollback.AttemptsBeforeRollback
	}
	if bn.Rollback.RollbackBlockOffset > 0 {
		o.BlockNumber.Rollback.RollbackBlockOffset = bn.Rollback.RollbackBlockOffset
	}

	if override.MaxConcurrency > 0 {
		o.MaxConcurrency = override.MaxConcurrency
	}
	return o
}

func (g GasOverride) merge(override GasOverride) GasOverride {
	if override.MaxCallsPerChunk > 0 {
		g.MaxCallsPerChunk = override.MaxCallsPerChunk
	}
	if override.GasLimitPerCall > 0 {
		g.GasLimitPerCall = override.GasLimitPerCall
	}
	return g
}

// BlockSource yields the block a single invocation is pinned to.
type BlockSource func(ctx context.Context) (uint64, error)

// FixedBlock pins an invocation to n.
func FixedBlock(n uint64) BlockSource {
	return func(context.Context) (uint64, error) { return n, nil }
}

// ProviderConfig carries per-invocation settings.
type ProviderConfig struct {
	// BlockNumber overrides head+BaseBlockOffset when set.
	BlockNumber BlockSource

	// OptimisticCachedRoutes marks invocations pricing routes taken from a
	// route cache rather than freshly enumerated; it only labels telemetry.
	OptimisticCachedRoutes bool

	// Options replaces the provider options for this invocation when set.
	Options *Options
}
