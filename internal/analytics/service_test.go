package analytics

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
	"github.com/ghosttrack/ghosttrack/internal/database"
)

const testSite = "s1"

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	return New(db, "default-site", zap.NewNop()), db
}

func strPtr(s string) *string { return &s }

func seedEvents(t *testing.T, db *database.DB, events []*database.Event) {
	t.Helper()
	_, err := db.InsertEvents(context.Background(), events)
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	svc, db := newTestService(t)
	base := time.UnixMilli(1700000000000)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", SessionID: strPtr("sess-A"), Timestamp: base},
		{SiteID: testSite, EventType: "pageview", URL: "/b", SessionID: strPtr("sess-A"), Timestamp: base.Add(5 * time.Second)},
		{SiteID: testSite, EventType: "click", URL: "/b", SessionID: strPtr("sess-A"), Timestamp: base.Add(70 * time.Second)},
		{SiteID: "other-site", EventType: "pageview", URL: "/x", SessionID: strPtr("sess-Z"), Timestamp: base},
	})

	stats, err := svc.Stats(context.Background(), testSite)
	require.NoError(t, err)

	assert.Equal(t, testSite, stats.SiteID)
	assert.EqualValues(t, 3, stats.TotalEvents)
	assert.EqualValues(t, 1, stats.UniqueVisitors)
	assert.EqualValues(t, 2, stats.PageViews)
	assert.EqualValues(t, 0, stats.BotDetections)
}

func TestStats_BotDetections(t *testing.T) {
	svc, db := newTestService(t)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", IsBot: true},
		{SiteID: testSite, EventType: "suspicious_activity", URL: "/b"},
		// flagged bot AND suspicious type still counts once
		{SiteID: testSite, EventType: "suspicious_activity", URL: "/c", IsBot: true},
		{SiteID: testSite, EventType: "pageview", URL: "/d"},
	})

	stats, err := svc.Stats(context.Background(), testSite)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.BotDetections)
}

func TestStats_DefaultSite(t *testing.T) {
	svc, db := newTestService(t)

	seedEvents(t, db, []*database.Event{
		{SiteID: "default-site", EventType: "pageview", URL: "/a"},
	})

	stats, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "default-site", stats.SiteID)
	assert.EqualValues(t, 1, stats.TotalEvents)
}

func TestRecentEvents_NewestFirst(t *testing.T) {
	svc, db := newTestService(t)
	base := time.UnixMilli(1700000000000)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/old", Timestamp: base},
		{SiteID: testSite, EventType: "pageview", URL: "/mid", Timestamp: base.Add(time.Minute)},
		{SiteID: testSite, EventType: "pageview", URL: "/new", Timestamp: base.Add(2 * time.Minute)},
	})

	events, err := svc.RecentEvents(context.Background(), testSite, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "/new", events[0].URL)
	assert.Equal(t, "/mid", events[1].URL)
}

func TestEventsByType(t *testing.T) {
	svc, db := newTestService(t)
	base := time.UnixMilli(1700000000000)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", Timestamp: base},
		{SiteID: testSite, EventType: "pageview", URL: "/b", Timestamp: base.Add(time.Hour)},
		{SiteID: testSite, EventType: "click", URL: "/b", Timestamp: base.Add(2 * time.Hour)},
		{SiteID: testSite, EventType: "pageview", URL: "/c", Timestamp: base.Add(48 * time.Hour)},
	})

	t.Run("unbounded", func(t *testing.T) {
		counts, err := svc.EventsByType(context.Background(), testSite, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"pageview": 3, "click": 1}, counts)
	})

	t.Run("inclusive range", func(t *testing.T) {
		counts, err := svc.EventsByType(context.Background(), testSite, base, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"pageview": 2, "click": 1}, counts)
	})
}

func TestTrafficSources(t *testing.T) {
	svc, db := newTestService(t)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a"}, // null referrer
		{SiteID: testSite, EventType: "pageview", URL: "/b", Referrer: strPtr("")},
		{SiteID: testSite, EventType: "pageview", URL: "/c", Referrer: strPtr("https://www.GOOGLE.com/search?q=x")},
		{SiteID: testSite, EventType: "pageview", URL: "/d", Referrer: strPtr("https://bing.com")},
		{SiteID: testSite, EventType: "pageview", URL: "/e", Referrer: strPtr("https://facebook.com/page")},
		{SiteID: testSite, EventType: "pageview", URL: "/f", Referrer: strPtr("https://blog.partner.example")},
		{SiteID: testSite, EventType: "pageview", URL: "/g", Referrer: strPtr("direct")},
	})

	sources, err := svc.TrafficSources(context.Background(), testSite)
	require.NoError(t, err)

	// null referrer and empty referrer each land in direct exactly once
	assert.EqualValues(t, 3, sources.Direct)
	assert.EqualValues(t, 2, sources.Organic)
	assert.EqualValues(t, 1, sources.Social)
	assert.EqualValues(t, 1, sources.Referral)
}

func TestRecentVisitors(t *testing.T) {
	svc, db := newTestService(t)

	firstSeen := time.Now().Add(-10 * time.Minute).Truncate(time.Millisecond)
	lastSeen := firstSeen.Add(125 * time.Second) // 2m05s session

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "https://shop.example/", SessionID: strPtr("sess-A"),
			IPAddress: strPtr("203.0.113.7"), Timestamp: firstSeen},
		{SiteID: testSite, EventType: "pageview", URL: "https://shop.example/checkout", SessionID: strPtr("sess-A"),
			IPAddress: strPtr("203.0.113.7"), UserAgent: strPtr("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"),
			Timestamp: lastSeen},
		// stale session outside the 24h window
		{SiteID: testSite, EventType: "pageview", URL: "/old", SessionID: strPtr("sess-old"),
			Timestamp: time.Now().Add(-48 * time.Hour)},
	})

	visitors, err := svc.RecentVisitors(context.Background(), testSite, 10, 24)
	require.NoError(t, err)
	require.Len(t, visitors, 1)

	v := visitors[0]
	assert.Equal(t, "sess-A", v.SessionID)
	assert.EqualValues(t, 2, v.PageCount)
	assert.True(t, v.FirstSeen.Equal(firstSeen))
	assert.True(t, v.LastSeen.Equal(lastSeen))
	assert.Equal(t, "2:05", v.Duration)
	assert.Equal(t, "203.0.113.7", v.IPAddress)
	assert.Equal(t, "checkout", v.LastPage)
	assert.Contains(t, v.Browser, "Chrome")
	assert.Contains(t, v.TimeAgo, "m ago")
}

func TestRecentVisitors_OrderedByLastSeen(t *testing.T) {
	svc, db := newTestService(t)
	now := time.Now()

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", SessionID: strPtr("sess-A"), Timestamp: now.Add(-3 * time.Hour)},
		{SiteID: testSite, EventType: "pageview", URL: "/b", SessionID: strPtr("sess-B"), Timestamp: now.Add(-1 * time.Hour)},
		{SiteID: testSite, EventType: "pageview", URL: "/c", SessionID: strPtr("sess-C"), Timestamp: now.Add(-2 * time.Hour)},
	})

	visitors, err := svc.RecentVisitors(context.Background(), testSite, 2, 24)
	require.NoError(t, err)
	require.Len(t, visitors, 2)
	assert.Equal(t, "sess-B", visitors[0].SessionID)
	assert.Equal(t, "sess-C", visitors[1].SessionID)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2:05", formatDuration(125*time.Second))
	assert.Equal(t, "0:00", formatDuration(0))
	assert.Equal(t, "0:59", formatDuration(59*time.Second))
	assert.Equal(t, "61:01", formatDuration(61*time.Minute+time.Second))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", timeAgo(30*time.Second))
	assert.Equal(t, "5m ago", timeAgo(5*time.Minute+10*time.Second))
	assert.Equal(t, "3h ago", timeAgo(3*time.Hour+20*time.Minute))
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "checkout", lastPathSegment("https://shop.example/cart/checkout"))
	assert.Equal(t, "homepage", lastPathSegment("https://shop.example/"))
	assert.Equal(t, "homepage", lastPathSegment(""))
	assert.Equal(t, "shoes", lastPathSegment("/products/shoes"))
}

func TestThreatStats(t *testing.T) {
	svc, db := newTestService(t)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", ThreatScore: 70},
		{SiteID: testSite, EventType: "pageview", URL: "/b", ThreatScore: 30},
		{SiteID: testSite, EventType: "pageview", URL: "/c", Blocked: true},
		{SiteID: testSite, EventType: "pageview", URL: "/d"},
	})

	stats, err := svc.ThreatStats(context.Background(), testSite)
	require.NoError(t, err)

	assert.EqualValues(t, 4, stats.TotalEvents)
	assert.EqualValues(t, 1, stats.ThreatsDetected)
	assert.EqualValues(t, 1, stats.RequestsBlocked)
	assert.Equal(t, 25.0, stats.ThreatPercentage)
	assert.Equal(t, 25.0, stats.BlockedPercentage)
}

func TestThreatStats_EmptySite(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.ThreatStats(context.Background(), testSite)
	require.NoError(t, err)

	// No division by zero when there is no traffic
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.ThreatPercentage)
	assert.Zero(t, stats.BlockedPercentage)
}

func TestAlerts(t *testing.T) {
	svc, db := newTestService(t)
	base := time.UnixMilli(1700000000000)

	seedEvents(t, db, []*database.Event{
		{SiteID: testSite, EventType: "pageview", URL: "/a", Timestamp: base},
		{SiteID: testSite, EventType: "pageview", URL: "/b", IsBot: true, ThreatScore: 70, Timestamp: base.Add(time.Minute),
			IPAddress: strPtr("203.0.113.7"), UserAgent: strPtr("curl/7.0")},
		{SiteID: testSite, EventType: "suspicious_activity", URL: "/c", ThreatScore: 40, Timestamp: base.Add(2 * time.Minute)},
	})

	alerts, err := svc.Alerts(context.Background(), testSite, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// Newest first
	assert.Equal(t, "/c", alerts[0].URL)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Equal(t, "/b", alerts[1].URL)
	assert.Equal(t, "high", alerts[1].Severity)
	assert.Equal(t, "203.0.113.7", alerts[1].IPAddress)
}

func TestReadsHonorStoreTimeout(t *testing.T) {
	// A timeout this small expires before the driver runs any query, so
	// every read must surface a storage error instead of hanging on the
	// request context alone.
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), time.Nanosecond)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	svc := New(db, "default-site", zap.NewNop())
	ctx := context.Background()

	_, err = svc.Stats(ctx, testSite)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))

	_, err = svc.TrafficSources(ctx, testSite)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))

	_, err = svc.ThreatStats(ctx, testSite)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))

	_, err = svc.Alerts(ctx, testSite, 10)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))

	_, err = svc.SuspiciousSessions(ctx, testSite)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))

	_, err = svc.RecentVisitors(ctx, testSite, 10, 24)
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
}

func TestSuspiciousSessions(t *testing.T) {
	svc, db := newTestService(t)
	base := time.UnixMilli(1700000000000)

	var events []*database.Event
	addSession := func(session string, count int) {
		for i := 0; i < count; i++ {
			events = append(events, &database.Event{
				SiteID:    testSite,
				EventType: "pageview",
				URL:       fmt.Sprintf("/page-%d", i),
				SessionID: strPtr(session),
				Timestamp: base.Add(time.Duration(i) * time.Second),
			})
		}
	}
	addSession("sess-normal", 5)
	addSession("sess-busy", 15)
	addSession("sess-flood", 25)
	seedEvents(t, db, events)

	sessions, err := svc.SuspiciousSessions(context.Background(), testSite)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	// Busiest first
	assert.Equal(t, "sess-flood", sessions[0].SessionID)
	assert.EqualValues(t, 25, sessions[0].EventCount)
	assert.Equal(t, "high", sessions[0].RiskLevel)

	assert.Equal(t, "sess-busy", sessions[1].SessionID)
	assert.EqualValues(t, 15, sessions[1].EventCount)
	assert.Equal(t, "medium", sessions[1].RiskLevel)
}
