package api

import (
	"embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/analytics"
	"github.com/ghosttrack/ghosttrack/internal/auth"
	"github.com/ghosttrack/ghosttrack/internal/config"
	"github.com/ghosttrack/ghosttrack/internal/ingest"
)

//go:embed tracker.js
var trackerJS embed.FS

// NewRouter creates the HTTP router
func NewRouter(ingestSvc *ingest.Service, analyticsSvc *analytics.Service, authSvc *auth.Auth, cfg *config.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "Authorization"},
		MaxAge:         300,
	}))

	h := &Handlers{
		ingest:    ingestSvc,
		analytics: analyticsSvc,
		auth:      authSvc,
		cfg:       cfg,
		log:       log,
	}

	// Public endpoints
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/s.js", h.ServeTrackerScript)

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion (rate limited per IP)
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(cfg.RateLimitPerMinute, time.Minute, log))
			r.Post("/events/track", h.TrackEvent)
			r.Post("/events/track/batch", h.TrackBatch)
		})

		// Read-side aggregations
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/stats", h.GetStats)
			r.Get("/events", h.GetRecentEvents)
			r.Get("/events/by-type", h.GetEventsByType)
			r.Get("/traffic-sources", h.GetTrafficSources)
			r.Get("/recent-visitors", h.GetRecentVisitors)
		})

		// Threat summaries
		r.Route("/threats", func(r chi.Router) {
			r.Get("/alerts", h.GetThreatAlerts)
			r.Get("/stats", h.GetThreatStats)
			r.Get("/suspicious", h.GetSuspiciousActivity)
		})

		// Auth stubs
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Get("/me", h.Me)
		})
	})

	return r
}
