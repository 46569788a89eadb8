package api

import (
	"net/http"
)

// GetThreatAlerts returns recent bot-flagged events as alert records.
func (h *Handlers) GetThreatAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.analytics.Alerts(r.Context(), getSiteParam(r), getLimitParam(r, 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": getSiteParam(r),
		"count":   len(alerts),
		"alerts":  alerts,
	})
}

// GetThreatStats returns the threat summary for a site.
func (h *Handlers) GetThreatStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.ThreatStats(r.Context(), getSiteParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetSuspiciousActivity returns sessions with abnormal event volumes.
func (h *Handlers) GetSuspiciousActivity(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.analytics.SuspiciousSessions(r.Context(), getSiteParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site_id":  getSiteParam(r),
		"count":    len(sessions),
		"sessions": sessions,
	})
}
