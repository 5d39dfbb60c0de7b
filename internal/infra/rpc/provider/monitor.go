package provider

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // Provider is working normally
	StatusDegraded                        // Provider is slow but working
	StatusThrottled                       // Provider is rate limiting
	StatusBlocked                         // Provider has blocked this client
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON health output.
func (s ProviderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Status              ProviderStatus `json:"status"`
	AverageLatency      time.Duration  `json:"average_latency"`
	ThrottleCount429    int            `json:"throttle_count_429"`
	ThrottleCount403    int            `json:"throttle_count_403"`
	RequestsLast1Hour   int            `json:"requests_last_1h"`
	RequestsLast24Hours int            `json:"requests_last_24h"`
	EstimatedDailyLimit int            `json:"estimated_daily_limit"`
	UsagePercentage     float64        `json:"usage_percentage"`
}

const (
	defaultRetryAfter429 = 60 * time.Second
	defaultRetryAfter403 = 10 * time.Minute
)

// ProviderMonitor tracks provider latency, throttling and request volume.
type ProviderMonitor struct {
	mu  sync.RWMutex
	now func() time.Time

	// Response time tracking
	recentLatencies  []time.Duration
	maxLatencyWindow int

	// Throttle tracking
	status429Count     int
	status403Count     int
	throttlePatterns   []string
	lastThrottleTime   time.Time
	retryAfterDuration time.Duration

	// Sliding window
	requestTimestamps   []time.Time
	EstimatedDailyLimit int
	windowDuration      time.Duration

	slowResponseThreshold time.Duration
}

// NewProviderMonitor creates a new monitor with default settings.
func NewProviderMonitor() *ProviderMonitor {
	return &ProviderMonitor{
		now:              time.Now,
		recentLatencies:  make([]time.Duration, 0, 100),
		maxLatencyWindow: 100,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"daily request count exceeded",
			"project rate limit",
			"monthly quota exceeded",
			"compute units per second",
		},
		EstimatedDailyLimit:   100000,
		windowDuration:        24 * time.Hour,
		slowResponseThreshold: 3 * time.Second,
	}
}

// RecordRequest records a successful request with its latency.
func (pm *ProviderMonitor) RecordRequest(latency time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := pm.now()

	pm.recentLatencies = append(pm.recentLatencies, latency)
	if len(pm.recentLatencies) > pm.maxLatencyWindow {
		pm.recentLatencies = pm.recentLatencies[1:]
	}

	pm.requestTimestamps = append(pm.requestTimestamps, now)

	// timestamps are appended in order, so expired ones form a prefix
	cutoff := now.Add(-pm.windowDuration)
	i := 0
	for i < len(pm.requestTimestamps) && !pm.requestTimestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		pm.requestTimestamps = append(pm.requestTimestamps[:0], pm.requestTimestamps[i:]...)
	}
}

// RecordThrottle records a rate limiting or blocking response. retryAfter
// is the raw Retry-After header in seconds.
func (pm *ProviderMonitor) RecordThrottle(statusCode int, retryAfter string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.lastThrottleTime = pm.now()

	switch statusCode {
	case 429:
		pm.status429Count++
		pm.retryAfterDuration = defaultRetryAfter429
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			pm.retryAfterDuration = time.Duration(secs) * time.Second
		}
	case 403:
		pm.status403Count++
		pm.retryAfterDuration = defaultRetryAfter403
	}
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func (pm *ProviderMonitor) DetectThrottlePattern(message string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	lowerMsg := strings.ToLower(message)
	for _, pattern := range pm.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// CheckProviderStatus returns the current status of the provider.
func (pm *ProviderMonitor) CheckProviderStatus() ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.statusLocked()
}

func (pm *ProviderMonitor) statusLocked() ProviderStatus {
	sinceThrottle := pm.now().Sub(pm.lastThrottleTime)

	if pm.status403Count > 0 && sinceThrottle < pm.retryAfterDuration {
		return StatusBlocked
	}
	if pm.status429Count > 5 && sinceThrottle < pm.retryAfterDuration {
		return StatusThrottled
	}

	if len(pm.recentLatencies) > 10 && pm.averageLatencyLocked() > pm.slowResponseThreshold {
		return StatusDegraded
	}

	usage := float64(len(pm.requestTimestamps)) / float64(pm.EstimatedDailyLimit)
	if usage > 0.9 {
		return StatusThrottled
	}

	return StatusHealthy
}

// GetRetryAfter returns remaining time before retry is allowed.
func (pm *ProviderMonitor) GetRetryAfter() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	remaining := pm.retryAfterDuration - pm.now().Sub(pm.lastThrottleTime)
	if pm.retryAfterDuration > 0 && remaining > 0 {
		return remaining
	}
	return 0
}

// GetAverageLatency returns the average latency of recent requests.
func (pm *ProviderMonitor) GetAverageLatency() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.averageLatencyLocked()
}

func (pm *ProviderMonitor) averageLatencyLocked() time.Duration {
	if len(pm.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range pm.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(pm.recentLatencies))
}

// GetRequestCount returns number of requests in the given duration.
func (pm *ProviderMonitor) GetRequestCount(duration time.Duration) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.requestCountLocked(duration)
}

func (pm *ProviderMonitor) requestCountLocked(duration time.Duration) int {
	cutoff := pm.now().Add(-duration)
	count := 0
	for _, t := range pm.requestTimestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// GetStats returns current monitoring statistics.
func (pm *ProviderMonitor) GetStats() MonitorStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := MonitorStats{
		Status:              pm.statusLocked(),
		AverageLatency:      pm.averageLatencyLocked(),
		ThrottleCount429:    pm.status429Count,
		ThrottleCount403:    pm.status403Count,
		RequestsLast1Hour:   pm.requestCountLocked(time.Hour),
		RequestsLast24Hours: len(pm.requestTimestamps),
		EstimatedDailyLimit: pm.EstimatedDailyLimit,
	}
	if pm.EstimatedDailyLimit > 0 {
		stats.UsagePercentage = float64(len(pm.requestTimestamps)) / float64(pm.EstimatedDailyLimit) * 100
	}
	return stats
}

// SetDailyLimit updates the estimated daily limit.
func (pm *ProviderMonitor) SetDailyLimit(limit int) {
	if limit <= 0 {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.EstimatedDailyLimit = limit
}
