// Package routing handles provider selection and failover.
//
// This package contains:
//   - Router: interface for provider selection and health tracking
//   - DefaultRouter: round-robin selection with a circuit breaker
//   - Retry: error classification, backoff and failover
package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc/provider"
)

// Router handles provider selection and health tracking.
type Router interface {
	// AddProvider registers a provider for a specific chain
	AddProvider(chainID domain.ChainID, p provider.Provider)

	// GetProvider returns the best available provider for a chain
	GetProvider(chainID domain.ChainID) (provider.Provider, error)

	// RotateProvider moves the chain to its next provider
	RotateProvider(chainID domain.ChainID) (provider.Provider, error)

	// GetAllProviders returns all providers for a chain
	GetAllProviders(chainID domain.ChainID) []provider.Provider

	// RecordSuccess tracks successful calls
	RecordSuccess(providerName string, latency time.Duration)

	// RecordFailure tracks failed calls
	RecordFailure(providerName string, err error)
}

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

type providerMetrics struct {
	successCount     int
	failureCount     int
	totalLatency     time.Duration
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	consecutiveFails int
	circuitOpen      bool
}

// DefaultRouter picks providers round-robin, skipping blocked providers and
// providers whose circuit is open.
type DefaultRouter struct {
	mu             sync.RWMutex
	chainProviders map[domain.ChainID][]provider.Provider
	providerHealth map[string]*providerMetrics
	cursor         map[domain.ChainID]int
	now            func() time.Time
}

// NewRouter creates an empty router.
func NewRouter() *DefaultRouter {
	return &DefaultRouter{
		chainProviders: make(map[domain.ChainID][]provider.Provider),
		providerHealth: make(map[string]*providerMetrics),
		cursor:         make(map[domain.ChainID]int),
		now:            time.Now,
	}
}

// AddProvider registers a provider for a chain.
func (r *DefaultRouter) AddProvider(chainID domain.ChainID, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chainProviders[chainID] = append(r.chainProviders[chainID], p)
	r.providerHealth[p.GetName()] = &providerMetrics{lastSuccessAt: r.now()}
}

// GetProvider returns the current provider for a chain, moving past
// providers that cannot serve.
func (r *DefaultRouter) GetProvider(chainID domain.ChainID) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.chainProviders[chainID]
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}

	start := r.cursor[chainID]
	for i := range providers {
		p := providers[(start+i)%len(providers)]
		if r.usableLocked(p) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no available providers for chain %s", chainID)
}

// RotateProvider advances the chain's cursor and returns the new provider.
func (r *DefaultRouter) RotateProvider(chainID domain.ChainID) (provider.Provider, error) {
	r.mu.Lock()
	if n := len(r.chainProviders[chainID]); n > 1 {
		r.cursor[chainID] = (r.cursor[chainID] + 1) % n
	}
	r.mu.Unlock()

	return r.GetProvider(chainID)
}

// GetAllProviders returns the chain's providers starting at the current one.
func (r *DefaultRouter) GetAllProviders(chainID domain.ChainID) []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.chainProviders[chainID]
	result := make([]provider.Provider, 0, len(providers))
	start := r.cursor[chainID]
	for i := range providers {
		result = append(result, providers[(start+i)%len(providers)])
	}
	return result
}

// RecordSuccess records a successful call and closes the circuit.
func (r *DefaultRouter) RecordSuccess(providerName string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	m.successCount++
	m.totalLatency += latency
	m.lastSuccessAt = r.now()
	m.consecutiveFails = 0
	m.circuitOpen = false
}

// RecordFailure records a failed call. Five consecutive failures open the
// provider's circuit for circuitCooldown.
func (r *DefaultRouter) RecordFailure(providerName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.providerHealth[providerName]
	if !ok {
		return
	}

	m.failureCount++
	m.lastFailureAt = r.now()
	m.consecutiveFails++

	if m.consecutiveFails >= circuitThreshold {
		m.circuitOpen = true
	}
}

// CircuitOpen reports whether the named provider is currently skipped.
func (r *DefaultRouter) CircuitOpen(providerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.providerHealth[providerName]
	return ok && r.circuitOpenLocked(m)
}

func (r *DefaultRouter) circuitOpenLocked(m *providerMetrics) bool {
	return m.circuitOpen && r.now().Sub(m.lastFailureAt) < circuitCooldown
}

func (r *DefaultRouter) usableLocked(p provider.Provider) bool {
	if m, ok := r.providerHealth[p.GetName()]; ok && r.circuitOpenLocked(m) {
		return false
	}
	if hp, ok := p.(*provider.HTTPProvider); ok {
		return hp.Monitor.CheckProviderStatus() != provider.StatusBlocked
	}
	return p.IsAvailable()
}
