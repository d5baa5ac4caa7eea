package monitoring

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount int64
	ErrorCount   int64
	CacheHits    int64
	CacheMisses  int64
	StartTime    time.Time

	// Proof outcomes
	ProofsGenerated int64
	ProofsValid     int64
	ProofsFailed    int64
	FailuresByKind  map[string]int64
	failuresMutex   sync.RWMutex

	// Response times for percentiles
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Rate limit metrics
	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

const maxResponseSamples = 1000

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		FailuresByKind:       make(map[string]int64),
		ResponseTimes:        make([]time.Duration, 0, maxResponseSamples),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// RecordProof records a generated proof and whether it was valid
func (m *Metrics) RecordProof(valid bool) {
	atomic.AddInt64(&m.ProofsGenerated, 1)
	if valid {
		atomic.AddInt64(&m.ProofsValid, 1)
	}
}

// RecordProofFailure records a failed proof run by error category
func (m *Metrics) RecordProofFailure(kind string) {
	atomic.AddInt64(&m.ProofsFailed, 1)

	m.failuresMutex.Lock()
	m.FailuresByKind[kind]++
	m.failuresMutex.Unlock()
}

// RecordResponseTime keeps the most recent response times for percentile queries
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.ResponseTimesMutex.Lock()
	defer m.ResponseTimesMutex.Unlock()

	if len(m.ResponseTimes) >= maxResponseSamples {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimes = append(m.ResponseTimes, duration)
}

// RecordRequestByStatus records a request by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	m.RequestCountByStatus[statusCode]++
	m.StatusMutex.Unlock()
}

// IncrementRateLimitIPBlock counts a request rejected by the IP limiter
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError counts a Redis failure during a limit check
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback counts a limit check served from memory
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// GetPercentileResponseTime returns the response time at the given percentile (0-100)
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	samples := append([]time.Duration(nil), m.ResponseTimes...)
	m.ResponseTimesMutex.RUnlock()

	if len(samples) == 0 {
		return 0
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	idx := int(math.Ceil(percentile/100*float64(len(samples)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return samples[idx]
}

// GetStats returns a snapshot suitable for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	m.failuresMutex.RLock()
	failures := make(map[string]int64, len(m.FailuresByKind))
	for k, v := range m.FailuresByKind {
		failures[k] = v
	}
	m.failuresMutex.RUnlock()

	m.StatusMutex.RLock()
	statuses := make(map[int]int64, len(m.RequestCountByStatus))
	for k, v := range m.RequestCountByStatus {
		statuses[k] = v
	}
	m.StatusMutex.RUnlock()

	return map[string]interface{}{
		"uptime_seconds":   time.Since(m.StartTime).Seconds(),
		"requests":         atomic.LoadInt64(&m.RequestCount),
		"errors":           atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":       atomic.LoadInt64(&m.CacheHits),
		"cache_misses":     atomic.LoadInt64(&m.CacheMisses),
		"proofs_generated": atomic.LoadInt64(&m.ProofsGenerated),
		"proofs_valid":     atomic.LoadInt64(&m.ProofsValid),
		"proofs_failed":    atomic.LoadInt64(&m.ProofsFailed),
		"failures_by_kind": failures,
		"status_codes":     statuses,
		"p50_ms":           m.GetPercentileResponseTime(50).Milliseconds(),
		"p95_ms":           m.GetPercentileResponseTime(95).Milliseconds(),
		"rate_limit": map[string]int64{
			"ip_blocks":    atomic.LoadInt64(&m.RateLimitIPBlocks),
			"redis_errors": atomic.LoadInt64(&m.RateLimitRedisErrors),
			"fallbacks":    atomic.LoadInt64(&m.RateLimitFallbackCount),
		},
	}
}
