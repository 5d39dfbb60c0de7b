// Package rpc provides a resilient JSON-RPC client for EVM nodes.
//
// It offers:
//   - Multiple providers per chain (Alchemy, Infura, public nodes, ...)
//   - Failover on rate limiting and a circuit breaker per provider
//   - Retry with exponential backoff on transient transport errors
//   - Throttle and usage monitoring
//
// # Quick Start
//
//	import "github.com/vietddude/swapquote/internal/infra/rpc"
//
//	router := rpc.NewRouter()
//	router.AddProvider(domain.ChainIDEthereum, rpc.NewHTTPProvider("alchemy", alchemyURL, 10*time.Second))
//	router.AddProvider(domain.ChainIDEthereum, rpc.NewHTTPProvider("infura", infuraURL, 10*time.Second))
//
//	client := rpc.NewClient(domain.ChainIDEthereum, router)
//	result, err := client.Call(ctx, "eth_blockNumber", nil)
//
// # Package Structure
//
//   - provider/ - HTTPProvider and monitoring
//   - routing/  - provider selection, retry and failover
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"context"
	"time"

	"github.com/vietddude/swapquote/internal/infra/rpc/provider"
	"github.com/vietddude/swapquote/internal/infra/rpc/routing"
)

// RPCClient is the minimal surface chain adapters depend on.
type RPCClient interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// Provider is the core interface for RPC endpoints.
type Provider = provider.Provider

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider = provider.HTTPProvider

// HealthStatus represents the health state of a provider.
type HealthStatus = provider.HealthStatus

// ProviderStatus represents the throttle state of a provider.
type ProviderStatus = provider.ProviderStatus

// Provider status constants
const (
	StatusHealthy   = provider.StatusHealthy
	StatusDegraded  = provider.StatusDegraded
	StatusThrottled = provider.StatusThrottled
	StatusBlocked   = provider.StatusBlocked
)

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// Router handles provider selection and health tracking.
type Router = routing.Router

// DefaultRouter implements round-robin selection with circuit breaker.
type DefaultRouter = routing.DefaultRouter

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// NewRouter creates a new router.
func NewRouter() *DefaultRouter {
	return routing.NewRouter()
}
