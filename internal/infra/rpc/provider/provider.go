// Package provider implements JSON-RPC endpoints with health tracking.
//
// This package contains:
//   - Provider interface: the abstraction routing works against
//   - HTTPProvider: JSON-RPC 2.0 over HTTP
//   - ProviderMonitor: throttle and daily usage tracking
package provider

import (
	"context"
	"time"
)

// Provider is a single JSON-RPC endpoint.
type Provider interface {
	// GetName returns provider identifier (e.g., "alchemy", "infura")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Call makes a single RPC request
	Call(ctx context.Context, method string, params []any) (any, error)

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available           bool          `json:"available"`
	Latency             time.Duration `json:"latency"`
	ErrorRate           float64       `json:"error_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	NodeErrors          int           `json:"node_errors"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastFailureAt       time.Time     `json:"last_failure_at"`
	MonitorStats        *MonitorStats `json:"monitor_stats,omitempty"`
}
