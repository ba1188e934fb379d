package takarakuji

import (
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMetrics collects ticket checking statistics
type PerformanceMetrics struct {
	// Check operation counters
	TotalChecks      int64 `json:"total_checks"`      // Check calls handled
	SuccessfulChecks int64 `json:"successful_checks"` // Checks that produced a result
	FailedChecks     int64 `json:"failed_checks"`     // Checks that ended in an error
	WinningChecks    int64 `json:"winning_checks"`    // Checks where at least one ticket won
	CheckedTickets   int64 `json:"checked_tickets"`   // Individual tickets evaluated

	// Timing statistics
	AverageCheckTime int64 `json:"average_check_time"` // Average check time (nanoseconds)
	TotalCheckTime   int64 `json:"total_check_time"`   // Total check time (nanoseconds)

	// History store statistics
	RedisErrors int64 `json:"redis_errors"` // Redis error count

	// Timestamps
	StartTime      int64 `json:"start_time"`       // Collection start time
	LastUpdateTime int64 `json:"last_update_time"` // Last update time
}

// GetSuccessRate returns the share of checks that completed without an
// error, as a percentage.
func (pm *PerformanceMetrics) GetSuccessRate() float64 {
	total := atomic.LoadInt64(&pm.TotalChecks)
	if total == 0 {
		return 0.0
	}
	successful := atomic.LoadInt64(&pm.SuccessfulChecks)
	return float64(successful) / float64(total) * 100.0
}

// GetWinRate returns the share of completed checks that found a winning
// ticket, as a percentage.
func (pm *PerformanceMetrics) GetWinRate() float64 {
	successful := atomic.LoadInt64(&pm.SuccessfulChecks)
	if successful == 0 {
		return 0.0
	}
	winning := atomic.LoadInt64(&pm.WinningChecks)
	return float64(winning) / float64(successful) * 100.0
}

// GetThroughput returns checks per second since collection started.
func (pm *PerformanceMetrics) GetThroughput() float64 {
	startTime := atomic.LoadInt64(&pm.StartTime)
	lastUpdate := atomic.LoadInt64(&pm.LastUpdateTime)
	if startTime == 0 || lastUpdate <= startTime {
		return 0.0
	}

	duration := time.Duration(lastUpdate - startTime)
	totalChecks := atomic.LoadInt64(&pm.TotalChecks)

	return float64(totalChecks) / duration.Seconds()
}

// Reset clears all counters and restarts the collection window.
func (pm *PerformanceMetrics) Reset() {
	atomic.StoreInt64(&pm.TotalChecks, 0)
	atomic.StoreInt64(&pm.SuccessfulChecks, 0)
	atomic.StoreInt64(&pm.FailedChecks, 0)
	atomic.StoreInt64(&pm.WinningChecks, 0)
	atomic.StoreInt64(&pm.CheckedTickets, 0)
	atomic.StoreInt64(&pm.AverageCheckTime, 0)
	atomic.StoreInt64(&pm.TotalCheckTime, 0)
	atomic.StoreInt64(&pm.RedisErrors, 0)
	atomic.StoreInt64(&pm.StartTime, time.Now().UnixNano())
	atomic.StoreInt64(&pm.LastUpdateTime, time.Now().UnixNano())
}

// ================================================================================

// PerformanceMonitor records check operations into shared metrics
type PerformanceMonitor struct {
	metrics *PerformanceMetrics
	mu      sync.RWMutex
	enabled bool
}

// NewPerformanceMonitor creates an enabled monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{
		metrics: &PerformanceMetrics{},
		enabled: true,
	}
	pm.metrics.Reset()
	return pm
}

// Enable turns recording on
func (pm *PerformanceMonitor) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.enabled = true
}

// Disable turns recording off
func (pm *PerformanceMonitor) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.enabled = false
}

// IsEnabled reports whether recording is on
func (pm *PerformanceMonitor) IsEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return pm.enabled
}

// RecordCheck records one check call. tickets is how many tickets the
// call evaluated, winning whether any of them won.
func (pm *PerformanceMonitor) RecordCheck(success, winning bool, tickets int, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.TotalChecks, 1)
	atomic.AddInt64(&pm.metrics.TotalCheckTime, int64(duration))

	if success {
		atomic.AddInt64(&pm.metrics.SuccessfulChecks, 1)
		atomic.AddInt64(&pm.metrics.CheckedTickets, int64(tickets))
	} else {
		atomic.AddInt64(&pm.metrics.FailedChecks, 1)
	}
	if winning {
		atomic.AddInt64(&pm.metrics.WinningChecks, 1)
	}

	totalChecks := atomic.LoadInt64(&pm.metrics.TotalChecks)
	totalTime := atomic.LoadInt64(&pm.metrics.TotalCheckTime)
	atomic.StoreInt64(&pm.metrics.AverageCheckTime, totalTime/totalChecks)

	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordRedisError records a history store failure
func (pm *PerformanceMonitor) RecordRedisError() {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.RedisErrors, 1)
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// GetMetrics returns a copy of the current metrics
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	return PerformanceMetrics{
		TotalChecks:      atomic.LoadInt64(&pm.metrics.TotalChecks),
		SuccessfulChecks: atomic.LoadInt64(&pm.metrics.SuccessfulChecks),
		FailedChecks:     atomic.LoadInt64(&pm.metrics.FailedChecks),
		WinningChecks:    atomic.LoadInt64(&pm.metrics.WinningChecks),
		CheckedTickets:   atomic.LoadInt64(&pm.metrics.CheckedTickets),
		AverageCheckTime: atomic.LoadInt64(&pm.metrics.AverageCheckTime),
		TotalCheckTime:   atomic.LoadInt64(&pm.metrics.TotalCheckTime),
		RedisErrors:      atomic.LoadInt64(&pm.metrics.RedisErrors),
		StartTime:        atomic.LoadInt64(&pm.metrics.StartTime),
		LastUpdateTime:   atomic.LoadInt64(&pm.metrics.LastUpdateTime),
	}
}

// ResetMetrics restarts the collection window
func (pm *PerformanceMonitor) ResetMetrics() { pm.metrics.Reset() }
