package api

import (
	"net/http"
)

// Display color hints for the dashboard's traffic source chart.
var trafficSourceColors = map[string]string{
	"direct":   "#667eea",
	"organic":  "#48bb78",
	"social":   "#ed8936",
	"referral": "#4299e1",
}

// GetStats returns the headline site summary.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Stats(r.Context(), getSiteParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetRecentEvents returns the newest events, newest first.
func (h *Handlers) GetRecentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.analytics.RecentEvents(r.Context(), getSiteParam(r), getLimitParam(r, 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": getSiteParam(r),
		"count":   len(events),
		"events":  events,
	})
}

// GetEventsByType returns per-type counts within an optional date range.
func (h *Handlers) GetEventsByType(w http.ResponseWriter, r *http.Request) {
	start, end := getDateRangeParams(r)
	counts, err := h.analytics.EventsByType(r.Context(), getSiteParam(r), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": getSiteParam(r),
		"counts":  counts,
	})
}

// GetTrafficSources returns the four-bucket referrer breakdown with
// display color hints.
func (h *Handlers) GetTrafficSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.analytics.TrafficSources(r.Context(), getSiteParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": sources.SiteID,
		"sources": []map[string]interface{}{
			{"name": "Direct", "count": sources.Direct, "color": trafficSourceColors["direct"]},
			{"name": "Organic Search", "count": sources.Organic, "color": trafficSourceColors["organic"]},
			{"name": "Social Media", "count": sources.Social, "color": trafficSourceColors["social"]},
			{"name": "Referral", "count": sources.Referral, "color": trafficSourceColors["referral"]},
		},
	})
}

// GetRecentVisitors returns per-session summaries from the last day.
func (h *Handlers) GetRecentVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.analytics.RecentVisitors(r.Context(), getSiteParam(r), getLimitParam(r, 10), 24)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id":  getSiteParam(r),
		"count":    len(visitors),
		"visitors": visitors,
	})
}
