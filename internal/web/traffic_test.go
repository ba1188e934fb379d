package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const htmlAccept = "text/html,application/xhtml+xml"

func newTestTracker() (*TrafficTracker, *time.Time) {
	tracker := NewTrafficTracker()
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestTrafficTracker_CountsViews(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	tracker.Record("GET", "/", "203.0.113.2", "ua", htmlAccept)
	*now = now.Add(time.Minute)
	tracker.Record("GET", "/results", "203.0.113.2", "ua", htmlAccept)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, 2, snap.UniqueIPs)
	assert.Equal(t, 2, snap.PerPath["/"])
	assert.Equal(t, 1, snap.PerPath["/results"])
}

func TestTrafficTracker_DedupesRefreshes(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	assert.Equal(t, int64(1), tracker.Snapshot().Total, "refresh inside the window is one view")

	// A different page or a different visitor is a new view.
	tracker.Record("GET", "/results", "203.0.113.1", "ua", htmlAccept)
	tracker.Record("GET", "/", "203.0.113.1", "other-ua", htmlAccept)
	assert.Equal(t, int64(3), tracker.Snapshot().Total)

	*now = now.Add(trafficDedupeWindow + time.Second)
	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	assert.Equal(t, int64(4), tracker.Snapshot().Total, "window expiry makes it a view again")
}

func TestTrafficTracker_SubmissionAfterPageLoadCounts(t *testing.T) {
	tracker, now := newTestTracker()

	// Load the form, then submit tickets three seconds later. Both must
	// count; only navigations dedupe.
	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	*now = now.Add(3 * time.Second)
	tracker.Record("POST", "/", "203.0.113.1", "ua", htmlAccept)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(2), snap.Total)
	assert.Equal(t, 2, snap.PerPath["/"])

	// Repeated submissions never dedupe either.
	tracker.Record("POST", "/", "203.0.113.1", "ua", htmlAccept)
	assert.Equal(t, int64(3), tracker.Snapshot().Total)
}

func TestIsPageView(t *testing.T) {
	assert.True(t, isPageView("GET", htmlAccept))
	assert.True(t, isPageView("GET", "TEXT/HTML"))
	assert.False(t, isPageView("POST", htmlAccept))
	assert.False(t, isPageView("GET", "application/json"))
	assert.False(t, isPageView("GET", ""))
}

func TestTrafficTracker_ExcludesPlumbing(t *testing.T) {
	tracker, _ := newTestTracker()

	for _, path := range []string{"/health", "/metrics", "/admin", "/static/app.css", "/favicon.ico"} {
		tracker.Record("GET", path, "203.0.113.1", "ua", htmlAccept)
	}
	assert.Equal(t, int64(0), tracker.Snapshot().Total)
}

func TestTrafficTracker_MinuteSeries(t *testing.T) {
	tracker, now := newTestTracker()

	tracker.Record("GET", "/", "203.0.113.1", "ua", htmlAccept)
	*now = now.Add(time.Minute)
	tracker.Record("GET", "/", "203.0.113.2", "ua", htmlAccept)
	tracker.Record("GET", "/", "203.0.113.3", "ua", htmlAccept)

	snap := tracker.Snapshot()
	assert.Len(t, snap.PerMinute, 2)
	assert.Equal(t, 1, snap.PerMinute[0].Count)
	assert.Equal(t, 2, snap.PerMinute[1].Count)
	assert.True(t, snap.PerMinute[0].Minute.Before(snap.PerMinute[1].Minute))

	// Buckets beyond the series window fall off.
	*now = now.Add((trafficMinutes + 1) * time.Minute)
	tracker.Record("GET", "/", "203.0.113.4", "ua", htmlAccept)
	snap = tracker.Snapshot()
	assert.Len(t, snap.PerMinute, 1)
}
