// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health metrics for a specific chain.
type ChainHealth struct {
	ChainID            domain.ChainID              `json:"chain_id"`
	Name               string                      `json:"name"`
	Status             SystemStatus                `json:"status"`
	LatestBlock        uint64                      `json:"latest_block"`
	HeadError          string                      `json:"head_error,omitempty"`
	ProvidersAvailable int                         `json:"providers_available"`
	ProvidersTotal     int                         `json:"providers_total"`
	RecentRuns         int                         `json:"recent_runs"`
	FailedRuns         int                         `json:"failed_runs"`
	FailureRate        float64                     `json:"failure_rate"`
	Providers          map[string]rpc.HealthStatus `json:"providers,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	CheckedAt    time.Time              `json:"checked_at"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Aggregate returns the worst status across chains.
func Aggregate(chains map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, chain := range chains {
		if chain.Status == StatusCritical {
			return StatusCritical
		}
		if chain.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
