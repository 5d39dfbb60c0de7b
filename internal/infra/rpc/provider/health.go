package provider

import (
	"sync"
	"time"
)

const (
	// unavailableAfter consecutive transport failures take a provider out
	// of rotation until it answers again.
	unavailableAfter = 3

	// latencyWeight is the EWMA weight of the newest sample.
	latencyWeight = 0.2
)

// healthTracker keeps the per-provider bookkeeping shared by transports.
// Reverts and other JSON-RPC error responses prove the node is reachable, so
// only transport failures count against availability.
type healthTracker struct {
	mu          sync.RWMutex
	latency     time.Duration
	requests    int
	transport   int
	nodeErrors  int
	consecutive int
	lastSuccess time.Time
	lastFailure time.Time

	Monitor *ProviderMonitor
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		lastSuccess: time.Now(),
		Monitor:     NewProviderMonitor(),
	}
}

// GetHealth returns the provider's health status with a monitor snapshot.
func (h *healthTracker) GetHealth() HealthStatus {
	stats := h.Monitor.GetStats()

	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Available:           h.consecutive < unavailableAfter,
		Latency:             h.latency,
		ConsecutiveFailures: h.consecutive,
		NodeErrors:          h.nodeErrors,
		LastSuccessAt:       h.lastSuccess,
		LastFailureAt:       h.lastFailure,
		MonitorStats:        &stats,
	}
	if h.requests > 0 {
		status.ErrorRate = float64(h.transport) / float64(h.requests)
	}
	return status
}

// IsAvailable reports whether the provider should receive traffic.
func (h *healthTracker) IsAvailable() bool {
	switch h.Monitor.CheckProviderStatus() {
	case StatusThrottled, StatusBlocked:
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutive < unavailableAfter
}

func (h *healthTracker) recordSuccess(latency time.Duration) {
	h.mu.Lock()
	h.requests++
	h.consecutive = 0
	h.lastSuccess = time.Now()
	if h.latency == 0 {
		h.latency = latency
	} else {
		h.latency = time.Duration(latencyWeight*float64(latency) + (1-latencyWeight)*float64(h.latency))
	}
	h.mu.Unlock()

	h.Monitor.RecordRequest(latency)
}

// recordNodeError counts a JSON-RPC error response. The round trip itself
// succeeded.
func (h *healthTracker) recordNodeError(latency time.Duration) {
	h.mu.Lock()
	h.nodeErrors++
	h.mu.Unlock()

	h.recordSuccess(latency)
}

func (h *healthTracker) recordTransportFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests++
	h.transport++
	h.consecutive++
	h.lastFailure = time.Now()
}
