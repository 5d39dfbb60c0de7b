package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc"
	"github.com/vietddude/swapquote/internal/quoting/metrics"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

const (
	defaultMinInterval = 10 * time.Second
	runWindow          = 10 * time.Minute
	// minRunsForRate is the sample size below which run outcomes are ignored.
	minRunsForRate = 5
)

// ChainProbe exposes the per-chain state the monitor inspects.
type ChainProbe interface {
	Chains() []domain.ChainID
	GetLatestBlock(ctx context.Context, chainID domain.ChainID) (uint64, error)
	ProviderHealth(chainID domain.ChainID) map[string]rpc.HealthStatus
}

// RunCounter counts recent quote runs per outcome.
type RunCounter interface {
	CountByOutcome(ctx context.Context, chainID domain.ChainID, since time.Time) (map[quoter.Outcome]int, error)
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	probe       ChainProbe
	runs        RunCounter
	minInterval time.Duration
	now         func() time.Time
	log         *slog.Logger

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[string]ChainHealth
}

// NewMonitor creates a new health monitor. runs may be nil.
func NewMonitor(probe ChainProbe, runs RunCounter) *Monitor {
	return &Monitor{
		probe:       probe,
		runs:        runs,
		minInterval: defaultMinInterval,
		now:         time.Now,
		log:         slog.Default(),
		lastReport:  make(map[string]ChainHealth),
	}
}

// CheckHealth performs a health check for all chains. Results are reused
// for a short interval to avoid spamming the RPC providers.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastCheck) < m.minInterval && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ChainHealth)
	for _, chainID := range m.probe.Chains() {
		report[chainID.Name()] = m.checkChain(ctx, chainID)
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

// Report returns a full health report.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	chains := m.CheckHealth(ctx)
	return HealthReport{
		SystemStatus: Aggregate(chains),
		CheckedAt:    m.now(),
		Chains:       chains,
	}
}

func (m *Monitor) checkChain(ctx context.Context, chainID domain.ChainID) ChainHealth {
	health := ChainHealth{
		ChainID: chainID,
		Name:    chainID.Name(),
		Status:  StatusHealthy,
	}

	// 1. Head reachability
	latest, err := m.probe.GetLatestBlock(ctx, chainID)
	if err != nil {
		health.HeadError = err.Error()
	} else {
		health.LatestBlock = latest
		metrics.ChainLatestBlock.WithLabelValues(chainID.String()).Set(float64(latest))
	}

	// 2. Providers
	health.Providers = m.probe.ProviderHealth(chainID)
	health.ProvidersTotal = len(health.Providers)
	for _, p := range health.Providers {
		if p.Available {
			health.ProvidersAvailable++
		}
	}

	// 3. Recent quote outcomes
	if m.runs != nil {
		counts, err := m.runs.CountByOutcome(ctx, chainID, m.now().Add(-runWindow))
		if err != nil {
			m.log.Warn("Failed to count quote runs", "chain", chainID.Name(), "error", err)
		}
		for outcome, n := range counts {
			health.RecentRuns += n
			if outcome == quoter.OutcomeFailed || outcome == quoter.OutcomeError {
				health.FailedRuns += n
			}
		}
		if health.RecentRuns > 0 {
			health.FailureRate = float64(health.FailedRuns) / float64(health.RecentRuns)
		}
	}

	health.Status = evaluate(health)
	return health
}

func evaluate(h ChainHealth) SystemStatus {
	rated := h.RecentRuns >= minRunsForRate

	switch {
	case h.HeadError != "",
		h.ProvidersTotal > 0 && h.ProvidersAvailable == 0,
		rated && h.FailureRate > 0.5:
		return StatusCritical
	case h.ProvidersAvailable < h.ProvidersTotal,
		rated && h.FailureRate > 0.1:
		return StatusDegraded
	}
	return StatusHealthy
}

// Start refreshes the report every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultMinInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := m.CheckHealth(ctx)
			if status := Aggregate(report); status != StatusHealthy {
				m.log.Warn("System health degraded", "status", status)
			}
		}
	}
}
