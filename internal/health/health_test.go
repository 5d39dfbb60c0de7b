package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/infra/rpc"
	"github.com/vietddude/swapquote/internal/quoting/quoter"
)

// =============================================================================
// Mocks
// =============================================================================

type mockProbe struct {
	height    uint64
	err       error
	providers map[string]rpc.HealthStatus
	calls     int
}

func (m *mockProbe) Chains() []domain.ChainID { return []domain.ChainID{domain.ChainIDEthereum} }

func (m *mockProbe) GetLatestBlock(ctx context.Context, chainID domain.ChainID) (uint64, error) {
	m.calls++
	return m.height, m.err
}

func (m *mockProbe) ProviderHealth(chainID domain.ChainID) map[string]rpc.HealthStatus {
	return m.providers
}

type stubRuns struct {
	counts map[quoter.Outcome]int
}

func (s *stubRuns) CountByOutcome(ctx context.Context, c domain.ChainID, since time.Time) (map[quoter.Outcome]int, error) {
	return s.counts, nil
}

func available(n, total int) map[string]rpc.HealthStatus {
	out := make(map[string]rpc.HealthStatus, total)
	for i := range total {
		out[string(rune('a'+i))] = rpc.HealthStatus{Available: i < n}
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		&mockProbe{height: 1000, providers: available(2, 2)},
		&stubRuns{counts: map[quoter.Outcome]int{quoter.OutcomeSuccess: 20}},
	)

	report := monitor.CheckHealth(context.Background())
	health := report["ETHEREUM_MAINNET"]

	if health.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", health.Status)
	}
	if health.LatestBlock != 1000 || health.ProvidersAvailable != 2 || health.RecentRuns != 20 {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestMonitor_Degraded(t *testing.T) {
	monitor := NewMonitor(
		&mockProbe{height: 1000, providers: available(1, 2)},
		nil,
	)

	health := monitor.CheckHealth(context.Background())["ETHEREUM_MAINNET"]
	if health.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", health.Status)
	}
}

func TestMonitor_DegradedOnFailureRate(t *testing.T) {
	monitor := NewMonitor(
		&mockProbe{height: 1000, providers: available(1, 1)},
		&stubRuns{counts: map[quoter.Outcome]int{quoter.OutcomeSuccess: 8, quoter.OutcomeFailed: 2}},
	)

	health := monitor.CheckHealth(context.Background())["ETHEREUM_MAINNET"]
	if health.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", health.Status)
	}
	if health.FailureRate != 0.2 {
		t.Errorf("expected failure rate 0.2, got %v", health.FailureRate)
	}
}

func TestMonitor_IgnoresSmallSamples(t *testing.T) {
	monitor := NewMonitor(
		&mockProbe{height: 1000, providers: available(1, 1)},
		&stubRuns{counts: map[quoter.Outcome]int{quoter.OutcomeFailed: 2}},
	)

	health := monitor.CheckHealth(context.Background())["ETHEREUM_MAINNET"]
	if health.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", health.Status)
	}
}

func TestMonitor_Critical(t *testing.T) {
	tests := []struct {
		name  string
		probe *mockProbe
		runs  map[quoter.Outcome]int
	}{
		{
			name:  "head unreachable",
			probe: &mockProbe{err: errors.New("all providers failed"), providers: available(1, 1)},
		},
		{
			name:  "no provider available",
			probe: &mockProbe{height: 1000, providers: available(0, 2)},
		},
		{
			name:  "most runs failing",
			probe: &mockProbe{height: 1000, providers: available(1, 1)},
			runs:  map[quoter.Outcome]int{quoter.OutcomeError: 4, quoter.OutcomeSuccess: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewMonitor(tt.probe, &stubRuns{counts: tt.runs})
			health := monitor.CheckHealth(context.Background())["ETHEREUM_MAINNET"]
			if health.Status != StatusCritical {
				t.Errorf("expected critical, got %s", health.Status)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	probe := &mockProbe{height: 1000, providers: available(1, 1)}
	monitor := NewMonitor(probe, nil)

	now := time.Unix(1700000000, 0)
	monitor.now = func() time.Time { return now }

	monitor.CheckHealth(context.Background())
	monitor.CheckHealth(context.Background())
	if probe.calls != 1 {
		t.Errorf("expected cached report, got %d probes", probe.calls)
	}

	now = now.Add(11 * time.Second)
	monitor.CheckHealth(context.Background())
	if probe.calls != 2 {
		t.Errorf("expected refresh after interval, got %d probes", probe.calls)
	}
}

func TestHandlers(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, NewMonitor(&mockProbe{err: errors.New("down")}, nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.SystemStatus != StatusCritical || report.Chains["ETHEREUM_MAINNET"].HeadError != "down" {
		t.Errorf("unexpected report %+v", report)
	}
}
