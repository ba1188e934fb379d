package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application's Prometheus collectors. The default
// registry is not used so tests can scrape a clean slate.
var Registry = prometheus.NewRegistry()

var (
	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "takarakuji",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "takarakuji",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "takarakuji",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ticketChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "takarakuji",
			Subsystem: "checks",
			Name:      "tickets_total",
			Help:      "Total number of tickets evaluated.",
		},
		[]string{"game", "outcome"},
	)

	providerFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "takarakuji",
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Total number of draw lookups that reached the provider path.",
		},
		[]string{"game", "result"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "takarakuji",
			Subsystem: "provider",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of draw lookups, cache hits included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"game"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "takarakuji",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Draw cache lookups by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ticketChecks,
		providerFetches,
		providerDuration,
		cacheLookups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// MetricsHandler exposes the registered collectors for scraping.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentMiddleware records request counts, latencies and the
// in-flight gauge for every route except the scrape endpoint.
func InstrumentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordTicketCheck counts one evaluated ticket.
func RecordTicketCheck(game string, winning bool) {
	outcome := "lose"
	if winning {
		outcome = "win"
	}
	ticketChecks.WithLabelValues(game, outcome).Inc()
}

// RecordDrawLookup counts one draw resolution and its latency.
func RecordDrawLookup(game string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerFetches.WithLabelValues(game, result).Inc()
	providerDuration.WithLabelValues(game).Observe(duration.Seconds())
}

// AddCacheLookups folds draw cache hit and miss deltas into the
// counters. The cache keeps its own totals; the server feeds the
// difference since the last sync.
func AddCacheLookups(hits, misses float64) {
	if hits > 0 {
		cacheLookups.WithLabelValues("hit").Add(hits)
	}
	if misses > 0 {
		cacheLookups.WithLabelValues("miss").Add(misses)
	}
}
