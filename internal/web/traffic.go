package web

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// trafficDedupeWindow collapses page refreshes from the same visitor.
	trafficDedupeWindow = 15 * time.Second

	// trafficMinutes is the length of the per-minute series.
	trafficMinutes = 60

	// trafficMaxUniqueIPs bounds the unique visitor set.
	trafficMaxUniqueIPs = 10000

	// trafficMaxSeen bounds the dedupe map.
	trafficMaxSeen = 20000
)

// trafficExcluded paths never count as page views.
var trafficExcluded = []string{"/health", "/metrics", "/admin", "/static", "/assets", "/favicon"}

type minuteBucket struct {
	Minute time.Time `json:"minute"`
	Count  int       `json:"count"`
}

// TrafficSnapshot is what the admin page renders.
type TrafficSnapshot struct {
	Total     int64          `json:"total"`
	UniqueIPs int            `json:"unique_ips"`
	PerPath   map[string]int `json:"per_path"`
	PerMinute []minuteBucket `json:"per_minute"`
}

// TrafficTracker keeps lightweight page-view analytics in memory. It
// exists for the admin dashboard only and loses its numbers on restart.
type TrafficTracker struct {
	mu        sync.Mutex
	now       func() time.Time
	total     int64
	perPath   map[string]int
	perMinute map[time.Time]int
	uniqueIPs map[string]struct{}
	seen      map[string]time.Time
}

func NewTrafficTracker() *TrafficTracker {
	return &TrafficTracker{
		now:       time.Now,
		perPath:   make(map[string]int),
		perMinute: make(map[time.Time]int),
		uniqueIPs: make(map[string]struct{}),
		seen:      make(map[string]time.Time),
	}
}

// Middleware counts page views and submissions. Asset, health and
// admin traffic is skipped so the dashboard shows visitors rather than
// plumbing.
func (t *TrafficTracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t.Record(c.Request.Method, c.Request.URL.Path, clientIP(c),
			c.Request.UserAgent(), c.GetHeader("Accept"))
		c.Next()
	}
}

// isPageView reports whether a request is a browser navigation, the
// only kind the refresh dedupe applies to.
func isPageView(method, accept string) bool {
	if method != http.MethodGet {
		return false
	}
	return strings.Contains(strings.ToLower(accept), "text/html")
}

// Record counts one request against the analytics, subject to the
// exclusion list and the refresh dedupe window.
func (t *TrafficTracker) Record(method, path, ip, userAgent, accept string) {
	for _, prefix := range trafficExcluded {
		if strings.HasPrefix(path, prefix) {
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	// A refresh of the same page by the same visitor within the window
	// is one view, not two. Only navigations dedupe; a form submission
	// right after loading the form must still count.
	if isPageView(method, accept) {
		dedupeKey := ip + "|" + userAgent + "|" + path
		if last, ok := t.seen[dedupeKey]; ok && now.Sub(last) < trafficDedupeWindow {
			return
		}
		if len(t.seen) >= trafficMaxSeen {
			t.seen = make(map[string]time.Time)
		}
		t.seen[dedupeKey] = now
	}

	t.total++
	t.perPath[path]++
	if len(t.uniqueIPs) < trafficMaxUniqueIPs {
		t.uniqueIPs[ip] = struct{}{}
	}

	minute := now.Truncate(time.Minute)
	t.perMinute[minute]++
	t.pruneMinutes(minute)
}

// pruneMinutes drops buckets older than the series window. Caller holds
// the lock.
func (t *TrafficTracker) pruneMinutes(current time.Time) {
	cutoff := current.Add(-trafficMinutes * time.Minute)
	for minute := range t.perMinute {
		if minute.Before(cutoff) {
			delete(t.perMinute, minute)
		}
	}
}

// Snapshot copies the current counters for rendering.
func (t *TrafficTracker) Snapshot() TrafficSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := TrafficSnapshot{
		Total:     t.total,
		UniqueIPs: len(t.uniqueIPs),
		PerPath:   make(map[string]int, len(t.perPath)),
		PerMinute: make([]minuteBucket, 0, len(t.perMinute)),
	}
	for path, count := range t.perPath {
		snap.PerPath[path] = count
	}
	for minute, count := range t.perMinute {
		snap.PerMinute = append(snap.PerMinute, minuteBucket{Minute: minute, Count: count})
	}
	sort.Slice(snap.PerMinute, func(i, j int) bool {
		return snap.PerMinute[i].Minute.Before(snap.PerMinute[j].Minute)
	})
	return snap
}
