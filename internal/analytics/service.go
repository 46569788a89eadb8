// Package analytics runs read-only queries over the event store to
// produce dashboard summaries: totals, breakdowns by type and traffic
// source, recent visitor sessions and threat overviews.
package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
	"github.com/ghosttrack/ghosttrack/internal/database"
	"github.com/ghosttrack/ghosttrack/internal/enrichment"
)

// Sessions above this event count get flagged as suspicious; above the
// high mark they are reported as high risk.
const (
	suspiciousSessionEvents = 10
	highRiskSessionEvents   = 20
)

// Events scoring above this are counted as detected threats.
const threatScoreCutoff = 50.0

type Service struct {
	db          *database.DB
	defaultSite string
	log         *zap.Logger
}

func New(db *database.DB, defaultSite string, log *zap.Logger) *Service {
	return &Service{
		db:          db,
		defaultSite: defaultSite,
		log:         log,
	}
}

// site resolves an optional caller-supplied site id against the
// configured default.
func (s *Service) site(siteID string) string {
	if siteID == "" {
		return s.defaultSite
	}
	return siteID
}

// Stats is the headline dashboard summary for one site.
type Stats struct {
	SiteID         string `json:"site_id"`
	TotalEvents    int64  `json:"total_events"`
	UniqueVisitors int64  `json:"unique_visitors"`
	PageViews      int64  `json:"page_views"`
	BotDetections  int64  `json:"bot_detections"`
}

// Stats returns event totals for the site. Bot detections count events
// flagged at ingestion as well as explicit suspicious_activity events.
func (s *Service) Stats(ctx context.Context, siteID string) (*Stats, error) {
	site := s.site(siteID)
	stats := &Stats{SiteID: site}

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	queries := []struct {
		dest  *int64
		query string
	}{
		{&stats.TotalEvents, "SELECT COUNT(*) FROM events WHERE site_id = ?"},
		{&stats.UniqueVisitors, "SELECT COUNT(DISTINCT session_id) FROM events WHERE site_id = ? AND session_id IS NOT NULL"},
		{&stats.PageViews, "SELECT COUNT(*) FROM events WHERE site_id = ? AND event_type = 'pageview'"},
		{&stats.BotDetections, "SELECT COUNT(*) FROM events WHERE site_id = ? AND (is_bot = 1 OR event_type = 'suspicious_activity')"},
	}
	for _, q := range queries {
		if err := s.db.Conn().QueryRowContext(ctx, q.query, site).Scan(q.dest); err != nil {
			return nil, apperr.Storagef("site stats: %v", err)
		}
	}

	return stats, nil
}

// RecentEvents returns the newest events for the site, newest first.
func (s *Service) RecentEvents(ctx context.Context, siteID string, limit int) ([]*database.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.QueryEvents(ctx, database.Filter{
		SiteID: s.site(siteID),
		Desc:   true,
		Limit:  limit,
	})
}

// EventsByType returns per-type event counts, optionally constrained to an
// inclusive timestamp range.
func (s *Service) EventsByType(ctx context.Context, siteID string, start, end time.Time) (map[string]int64, error) {
	groups, err := s.db.AggregateEvents(ctx, "event_type", database.Filter{
		SiteID: s.site(siteID),
		Start:  start,
		End:    end,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(groups))
	for _, g := range groups {
		counts[g.Key] = g.Count
	}
	return counts, nil
}

// TrafficSources is the fixed four-bucket referrer breakdown.
type TrafficSources struct {
	SiteID   string `json:"site_id"`
	Direct   int64  `json:"direct"`
	Organic  int64  `json:"organic"`
	Social   int64  `json:"social"`
	Referral int64  `json:"referral"`
}

var (
	organicReferrers = []string{"google", "bing", "yahoo"}
	socialReferrers  = []string{"facebook", "twitter", "instagram", "linkedin"}
)

// TrafficSources classifies every event's referrer into one of four fixed
// buckets. Events recorded without a referrer are counted once under
// direct via a separate count, so a null referrer never lands twice.
func (s *Service) TrafficSources(ctx context.Context, siteID string) (*TrafficSources, error) {
	site := s.site(siteID)
	sources := &TrafficSources{SiteID: site}

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT referrer FROM events WHERE site_id = ? AND referrer IS NOT NULL", site)
	if err != nil {
		return nil, apperr.Storagef("traffic sources: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var referrer string
		if err := rows.Scan(&referrer); err != nil {
			return nil, apperr.Storagef("scan referrer: %v", err)
		}
		switch classifyReferrer(referrer) {
		case "organic":
			sources.Organic++
		case "social":
			sources.Social++
		case "referral":
			sources.Referral++
		default:
			sources.Direct++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate referrers: %v", err)
	}

	var noReferrer int64
	err = s.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE site_id = ? AND referrer IS NULL", site).Scan(&noReferrer)
	if err != nil {
		return nil, apperr.Storagef("count direct traffic: %v", err)
	}
	sources.Direct += noReferrer

	return sources, nil
}

func classifyReferrer(referrer string) string {
	ref := strings.ToLower(referrer)
	if ref == "" || ref == "direct" {
		return "direct"
	}
	for _, engine := range organicReferrers {
		if strings.Contains(ref, engine) {
			return "organic"
		}
	}
	for _, network := range socialReferrers {
		if strings.Contains(ref, network) {
			return "social"
		}
	}
	return "referral"
}

// VisitorSummary describes one recent visitor session.
type VisitorSummary struct {
	SessionID string    `json:"session_id"`
	PageCount int64     `json:"page_count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Duration  string    `json:"duration"`
	IPAddress string    `json:"ip_address"`
	LastPage  string    `json:"last_page"`
	Browser   string    `json:"browser"`
	TimeAgo   string    `json:"time_ago"`
}

// RecentVisitors summarizes sessions seen within the trailing window,
// ordered by last activity, newest first.
func (s *Service) RecentVisitors(ctx context.Context, siteID string, limit, windowHours int) ([]*VisitorSummary, error) {
	site := s.site(siteID)
	if limit <= 0 {
		limit = 10
	}
	if windowHours <= 0 {
		windowHours = 24
	}
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour).UnixMilli()

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT session_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM events
		WHERE site_id = ? AND session_id IS NOT NULL AND timestamp >= ?
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC, session_id ASC
		LIMIT ?
	`, site, since, limit)
	if err != nil {
		return nil, apperr.Storagef("recent visitors: %v", err)
	}
	defer rows.Close()

	var visitors []*VisitorSummary
	for rows.Next() {
		var (
			v               VisitorSummary
			firstMs, lastMs int64
		)
		if err := rows.Scan(&v.SessionID, &v.PageCount, &firstMs, &lastMs); err != nil {
			return nil, apperr.Storagef("scan visitor session: %v", err)
		}
		v.FirstSeen = time.UnixMilli(firstMs)
		v.LastSeen = time.UnixMilli(lastMs)
		v.Duration = formatDuration(v.LastSeen.Sub(v.FirstSeen))
		v.TimeAgo = timeAgo(time.Since(v.LastSeen))
		visitors = append(visitors, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate visitor sessions: %v", err)
	}

	// Fill in details from each session's newest event
	for _, v := range visitors {
		var (
			eventURL  string
			ip        *string
			userAgent *string
		)
		err := s.db.Conn().QueryRowContext(ctx, `
			SELECT url, ip_address, user_agent FROM events
			WHERE site_id = ? AND session_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		`, site, v.SessionID).Scan(&eventURL, &ip, &userAgent)
		if err != nil {
			return nil, apperr.Storagef("visitor last event: %v", err)
		}

		v.LastPage = lastPathSegment(eventURL)
		if ip != nil {
			v.IPAddress = *ip
		}
		if userAgent != nil {
			v.Browser = enrichment.BrowserLabel(*userAgent)
		} else {
			v.Browser = "Unknown"
		}
	}

	return visitors, nil
}

// formatDuration renders a session length as minutes:seconds, e.g. "2:05".
func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// timeAgo renders a relative label for last activity.
func timeAgo(since time.Duration) string {
	seconds := int(since.Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	default:
		return fmt.Sprintf("%dh ago", seconds/3600)
	}
}

// lastPathSegment returns the final segment of a URL path, or "homepage"
// when the path is empty or ends at the root.
func lastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	path := rawURL
	if err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	path = strings.Trim(path, "/")
	if path == "" {
		return "homepage"
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

// ThreatStats summarizes high-score and blocked traffic for one site.
type ThreatStats struct {
	SiteID            string  `json:"site_id"`
	TotalEvents       int64   `json:"total_events"`
	ThreatsDetected   int64   `json:"threats_detected"`
	RequestsBlocked   int64   `json:"requests_blocked"`
	ThreatPercentage  float64 `json:"threat_percentage"`
	BlockedPercentage float64 `json:"blocked_percentage"`
}

func (s *Service) ThreatStats(ctx context.Context, siteID string) (*ThreatStats, error) {
	site := s.site(siteID)
	stats := &ThreatStats{SiteID: site}

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	queries := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&stats.TotalEvents, "SELECT COUNT(*) FROM events WHERE site_id = ?", []interface{}{site}},
		{&stats.ThreatsDetected, "SELECT COUNT(*) FROM events WHERE site_id = ? AND threat_score > ?", []interface{}{site, threatScoreCutoff}},
		{&stats.RequestsBlocked, "SELECT COUNT(*) FROM events WHERE site_id = ? AND blocked = 1", []interface{}{site}},
	}
	for _, q := range queries {
		if err := s.db.Conn().QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, apperr.Storagef("threat stats: %v", err)
		}
	}

	if stats.TotalEvents > 0 {
		stats.ThreatPercentage = float64(stats.ThreatsDetected) / float64(stats.TotalEvents) * 100
		stats.BlockedPercentage = float64(stats.RequestsBlocked) / float64(stats.TotalEvents) * 100
	}

	return stats, nil
}

// Alert is one bot-flagged event rendered for the security feed.
type Alert struct {
	EventID     int64     `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	URL         string    `json:"url"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	ThreatScore float64   `json:"threat_score"`
	Severity    string    `json:"severity"`
}

// Alerts returns recent bot-flagged or suspicious events, newest first.
func (s *Service) Alerts(ctx context.Context, siteID string, limit int) ([]*Alert, error) {
	site := s.site(siteID)
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, timestamp, event_type, url, ip_address, user_agent, threat_score
		FROM events
		WHERE site_id = ? AND (is_bot = 1 OR event_type = 'suspicious_activity')
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, site, limit)
	if err != nil {
		return nil, apperr.Storagef("threat alerts: %v", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var (
			a             Alert
			ts            int64
			ip, userAgent *string
		)
		if err := rows.Scan(&a.EventID, &ts, &a.EventType, &a.URL, &ip, &userAgent, &a.ThreatScore); err != nil {
			return nil, apperr.Storagef("scan alert: %v", err)
		}
		a.Timestamp = time.UnixMilli(ts)
		if ip != nil {
			a.IPAddress = *ip
		}
		if userAgent != nil {
			a.UserAgent = *userAgent
		}
		a.Severity = alertSeverity(a.ThreatScore)
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate alerts: %v", err)
	}
	return alerts, nil
}

func alertSeverity(score float64) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// SuspiciousSession flags sessions with unusually high event counts.
type SuspiciousSession struct {
	SessionID  string    `json:"session_id"`
	EventCount int64     `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	RiskLevel  string    `json:"risk_level"`
}

// SuspiciousSessions returns sessions whose event count exceeds the
// suspicious threshold, busiest first.
func (s *Service) SuspiciousSessions(ctx context.Context, siteID string) ([]*SuspiciousSession, error) {
	site := s.site(siteID)

	ctx, cancel := s.db.ReadContext(ctx)
	defer cancel()

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT session_id, COUNT(*) AS events, MIN(timestamp), MAX(timestamp)
		FROM events
		WHERE site_id = ? AND session_id IS NOT NULL
		GROUP BY session_id
		HAVING events > ?
		ORDER BY events DESC, session_id ASC
	`, site, suspiciousSessionEvents)
	if err != nil {
		return nil, apperr.Storagef("suspicious sessions: %v", err)
	}
	defer rows.Close()

	var sessions []*SuspiciousSession
	for rows.Next() {
		var (
			sess            SuspiciousSession
			firstMs, lastMs int64
		)
		if err := rows.Scan(&sess.SessionID, &sess.EventCount, &firstMs, &lastMs); err != nil {
			return nil, apperr.Storagef("scan suspicious session: %v", err)
		}
		sess.FirstSeen = time.UnixMilli(firstMs)
		sess.LastSeen = time.UnixMilli(lastMs)
		if sess.EventCount > highRiskSessionEvents {
			sess.RiskLevel = "high"
		} else {
			sess.RiskLevel = "medium"
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate suspicious sessions: %v", err)
	}
	return sessions, nil
}
