package takarakuji

import (
	"time"

	"github.com/sony/gobreaker"
)

// ProviderBreaker guards provider fetches with a circuit breaker so a
// struggling upstream is not hammered by every cache miss.
type ProviderBreaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewProviderBreaker creates a breaker from config. A disabled config
// returns a passthrough wrapper.
func NewProviderBreaker(config *CircuitBreakerConfig, logger Logger) *ProviderBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	if !config.Enabled {
		return &ProviderBreaker{
			logger: logger,
			config: config,
		}
	}

	return &ProviderBreaker{
		breaker: gobreaker.NewCircuitBreaker(breakerSettings(config, logger)),
		logger:  logger,
		config:  config,
	}
}

func breakerSettings(config *CircuitBreakerConfig, logger Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip once enough requests were seen and the failure ratio
			// crosses the threshold.
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange && logger != nil {
				logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	}
}

// Execute runs operation under the breaker. Breaker rejections come back
// as ErrCircuitBreakerOpen so callers see a fetch-class error.
func (b *ProviderBreaker) Execute(operation func() (any, error)) (any, error) {
	if b.breaker == nil {
		return operation()
	}

	result, err := b.breaker.Execute(operation)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, ErrCircuitBreakerOpen.WithDetails("circuit breaker is open, requests are being rejected")
		}
		if err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
		}
	}

	return result, err
}

// State returns the breaker state as a string.
func (b *ProviderBreaker) State() string {
	if b.breaker == nil {
		return "disabled"
	}

	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Counts returns the breaker's rolling counters.
func (b *ProviderBreaker) Counts() gobreaker.Counts {
	if b.breaker == nil {
		return gobreaker.Counts{}
	}
	return b.breaker.Counts()
}

// Reset recreates the breaker instance. gobreaker has no reset of its
// own, so a fresh instance is the closest equivalent.
func (b *ProviderBreaker) Reset() {
	if b.breaker == nil {
		return
	}

	b.breaker = gobreaker.NewCircuitBreaker(breakerSettings(b.config, b.logger))
	if b.logger != nil {
		b.logger.Info("Circuit breaker '%s' has been reset (recreated)", b.config.Name)
	}
}

// CircuitBreakerHealthCheck reports breaker health for the health endpoint.
type CircuitBreakerHealthCheck struct {
	breaker *ProviderBreaker
}

// NewCircuitBreakerHealthCheck creates a breaker health check.
func NewCircuitBreakerHealthCheck(breaker *ProviderBreaker) *CircuitBreakerHealthCheck {
	return &CircuitBreakerHealthCheck{
		breaker: breaker,
	}
}

// Check runs the health check.
func (h *CircuitBreakerHealthCheck) Check() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": h.breaker.config.Enabled,
	}

	if h.breaker.config.Enabled && h.breaker.breaker != nil {
		state := h.breaker.State()
		counts := h.breaker.Counts()

		result["state"] = state
		result["requests"] = counts.Requests
		result["total_successes"] = counts.TotalSuccesses
		result["total_failures"] = counts.TotalFailures
		result["consecutive_successes"] = counts.ConsecutiveSuccesses
		result["consecutive_failures"] = counts.ConsecutiveFailures

		if counts.Requests > 0 {
			result["success_rate"] = float64(counts.TotalSuccesses) / float64(counts.Requests)
			result["failure_rate"] = float64(counts.TotalFailures) / float64(counts.Requests)
		} else {
			result["success_rate"] = 0.0
			result["failure_rate"] = 0.0
		}

		healthy := true
		switch state {
		case "open":
			healthy = false
		case "half-open":
			// Half-open with repeated failures counts as unhealthy.
			if counts.ConsecutiveFailures > 2 {
				healthy = false
			}
		}

		result["healthy"] = healthy
	} else {
		result["state"] = "disabled"
		result["healthy"] = true
	}

	return result
}

// CircuitBreakerMetrics exposes breaker counters for metrics collection.
type CircuitBreakerMetrics struct {
	breaker *ProviderBreaker
}

// NewCircuitBreakerMetrics creates a breaker metrics collector.
func NewCircuitBreakerMetrics(breaker *ProviderBreaker) *CircuitBreakerMetrics {
	return &CircuitBreakerMetrics{
		breaker: breaker,
	}
}

// CollectMetrics collects the current breaker metrics.
func (m *CircuitBreakerMetrics) CollectMetrics() map[string]any {
	metrics := map[string]any{
		"circuit_breaker_enabled": m.breaker.config.Enabled,
		"timestamp":               time.Now().Unix(),
	}

	if m.breaker.config.Enabled && m.breaker.breaker != nil {
		state := m.breaker.State()
		counts := m.breaker.Counts()

		metrics["circuit_breaker_state"] = state
		metrics["circuit_breaker_state_numeric"] = m.stateToNumeric(state)

		metrics["circuit_breaker_requests_total"] = counts.Requests
		metrics["circuit_breaker_successes_total"] = counts.TotalSuccesses
		metrics["circuit_breaker_failures_total"] = counts.TotalFailures
		metrics["circuit_breaker_consecutive_successes"] = counts.ConsecutiveSuccesses
		metrics["circuit_breaker_consecutive_failures"] = counts.ConsecutiveFailures

		if counts.Requests > 0 {
			metrics["circuit_breaker_success_rate"] = float64(counts.TotalSuccesses) / float64(counts.Requests)
			metrics["circuit_breaker_failure_rate"] = float64(counts.TotalFailures) / float64(counts.Requests)
		} else {
			metrics["circuit_breaker_success_rate"] = 0.0
			metrics["circuit_breaker_failure_rate"] = 0.0
		}

		metrics["circuit_breaker_max_requests"] = m.breaker.config.MaxRequests
		metrics["circuit_breaker_failure_ratio_threshold"] = m.breaker.config.FailureRatio
		metrics["circuit_breaker_min_requests"] = m.breaker.config.MinRequests
		metrics["circuit_breaker_interval_seconds"] = m.breaker.config.Interval.Seconds()
		metrics["circuit_breaker_timeout_seconds"] = m.breaker.config.Timeout.Seconds()
	}

	return metrics
}

// stateToNumeric maps a breaker state to a numeric gauge value.
func (m *CircuitBreakerMetrics) stateToNumeric(state string) int {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
