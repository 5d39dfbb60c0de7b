package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior on a single provider.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnResult, if set, observes every provider call.
	OnResult func(providerName, method string, latency time.Duration, err error)
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "retry"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// Fatal: request is wrong, or the result is the same on every node.
	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(s, "execution reverted") || strings.Contains(s, "out of gas") {
		return ActionFatal
	}

	// Failover (provider specific issues)
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "plan limit") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") ||
		strings.Contains(sLower, "throttle") {
		return ActionFailover
	}

	// Default to Retry (network, 5xx, lagging node)
	return ActionRetry
}

func (c RetryConfig) backoff() retry.Backoff {
	initial := c.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxDelay := c.MaxDelay
	if maxDelay < initial {
		maxDelay = initial
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(initial)
	b = retry.WithCappedDuration(maxDelay, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// CallWithRetry calls p, retrying errors classified as ActionRetry with
// exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	var (
		result   any
		attempts int
	)

	err := retry.Do(ctx, config.backoff(), func(ctx context.Context) error {
		attempts++
		start := time.Now()
		res, err := p.Call(ctx, method, params)
		if config.OnResult != nil {
			config.OnResult(p.GetName(), method, time.Since(start), err)
		}
		if err == nil {
			result = res
			return nil
		}
		if ClassifyError(err) == ActionRetry {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if attempts > 1 {
			return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		return nil, err
	}
	return result, nil
}

// CallWithRetryAndFailover tries the chain's providers in router order,
// moving on after retries are exhausted or on a failover error. A fatal
// error stops immediately.
func CallWithRetryAndFailover(
	ctx context.Context,
	router Router,
	chainID domain.ChainID,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	providers := router.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}

	candidates := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = providers
	}

	var lastErr error
	for _, p := range candidates {
		start := time.Now()
		result, err := CallWithRetry(ctx, p, method, params, config)
		if err == nil {
			router.RecordSuccess(p.GetName(), time.Since(start))
			return result, nil
		}

		lastErr = err
		router.RecordFailure(p.GetName(), err)

		if ctx.Err() != nil {
			return nil, err
		}
		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("provider %s: %w", p.GetName(), err)
		}
		if ClassifyError(err) == ActionFailover {
			router.RotateProvider(chainID)
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
