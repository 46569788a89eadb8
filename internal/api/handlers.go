package api

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/analytics"
	"github.com/ghosttrack/ghosttrack/internal/auth"
	"github.com/ghosttrack/ghosttrack/internal/config"
	"github.com/ghosttrack/ghosttrack/internal/ingest"
)

// Version is set from main.go at startup
var Version = "dev"

// Tracked payload bodies larger than this are rejected outright.
const maxBodyBytes = 1 << 20

type Handlers struct {
	ingest    *ingest.Service
	analytics *analytics.Service
	auth      *auth.Auth
	cfg       *config.Config
	log       *zap.Logger
}

// Health check
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Root serves the service banner
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "GhostTrack API",
		"version": Version,
	})
}

// TrackEvent ingests a single tracked event.
func (h *Handlers) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var payload ingest.Payload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event payload")
		return
	}

	result, err := h.ingest.Track(r.Context(), payload, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"event_id":     result.EventID,
		"is_bot":       result.IsBot,
		"threat_score": result.ThreatScore,
	})
}

// TrackBatch ingests a batch of tracked events as one transaction.
func (h *Handlers) TrackBatch(w http.ResponseWriter, r *http.Request) {
	var payloads []ingest.Payload
	if err := decodeBody(r, &payloads); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch payload")
		return
	}

	count, err := h.ingest.TrackBatch(r.Context(), payloads, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"events_saved": count,
	})
}

// ServeTrackerScript serves the JavaScript tracker
func (h *Handlers) ServeTrackerScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=86400")

	script, err := trackerJS.ReadFile("tracker.js")
	if err != nil {
		http.Error(w, "Script not found", http.StatusNotFound)
		return
	}

	// Inject configuration ahead of the script body
	cfg := fmt.Sprintf("window.__GHOSTTRACK_CONFIG__={endpoint:%q,siteId:%q};",
		"/api/v1/events/track", h.cfg.DefaultSiteID)

	w.Write([]byte(cfg))
	w.Write(script)
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func clientInfo(r *http.Request) ingest.ClientInfo {
	return ingest.ClientInfo{
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
	}
}
