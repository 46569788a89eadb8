// Package ingest validates and normalizes incoming event payloads,
// classifies them and writes them to the event store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
	"github.com/ghosttrack/ghosttrack/internal/classifier"
	"github.com/ghosttrack/ghosttrack/internal/database"
	"github.com/ghosttrack/ghosttrack/internal/enrichment"
)

// Payload is one tracked event as submitted by the tracker script.
type Payload struct {
	SiteID    string                 `json:"site_id"`
	EventType string                 `json:"event_type"`
	URL       string                 `json:"url"`
	Referrer  string                 `json:"referrer,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ClientInfo carries the transport facts the HTTP layer observed.
type ClientInfo struct {
	RemoteAddr   string
	ForwardedFor string
	RealIP       string
}

// Result reports what was persisted for a single tracked event.
type Result struct {
	EventID     int64   `json:"event_id"`
	IsBot       bool    `json:"is_bot"`
	ThreatScore float64 `json:"threat_score"`
}

// EventStore is the write-side surface the service needs.
type EventStore interface {
	InsertEvent(ctx context.Context, e *database.Event) (int64, error)
	InsertEvents(ctx context.Context, events []*database.Event) (int, error)
}

type Service struct {
	store      EventStore
	classifier classifier.Classifier
	enricher   *enrichment.Enricher
	log        *zap.Logger
}

func New(store EventStore, cls classifier.Classifier, enricher *enrichment.Enricher, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		classifier: cls,
		enricher:   enricher,
		log:        log,
	}
}

// Track validates, classifies and persists one event. Exactly one row is
// written on success, zero on validation failure.
func (s *Service) Track(ctx context.Context, p Payload, client ClientInfo) (*Result, error) {
	event, err := s.buildEvent(p, client)
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertEvent(ctx, event)
	if err != nil {
		s.log.Error("failed to persist event",
			zap.String("site_id", p.SiteID),
			zap.String("event_type", p.EventType),
			zap.Error(err))
		return nil, err
	}

	s.log.Debug("event tracked",
		zap.Int64("event_id", id),
		zap.String("site_id", event.SiteID),
		zap.String("event_type", event.EventType),
		zap.Bool("is_bot", event.IsBot),
		zap.Float64("threat_score", event.ThreatScore))

	return &Result{EventID: id, IsBot: event.IsBot, ThreatScore: event.ThreatScore}, nil
}

// TrackBatch persists a batch of events as one store transaction. A single
// malformed payload fails the whole batch before anything is written.
func (s *Service) TrackBatch(ctx context.Context, payloads []Payload, client ClientInfo) (int, error) {
	if len(payloads) == 0 {
		return 0, apperr.Validationf("batch contains no events")
	}

	events := make([]*database.Event, 0, len(payloads))
	for i, p := range payloads {
		event, err := s.buildEvent(p, client)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}

	count, err := s.store.InsertEvents(ctx, events)
	if err != nil {
		s.log.Error("failed to persist batch",
			zap.Int("batch_size", len(events)),
			zap.Error(err))
		return 0, err
	}

	s.log.Debug("batch tracked", zap.Int("events_saved", count))
	return count, nil
}

func (s *Service) buildEvent(p Payload, client ClientInfo) (*database.Event, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	ip := enrichment.ExtractClientIP(client.RemoteAddr, map[string]string{
		"X-Forwarded-For": client.ForwardedFor,
		"X-Real-IP":       client.RealIP,
	})

	result := s.classifier.Classify(p.UserAgent, p.URL, ip)

	metadata, err := s.buildMetadata(p.Metadata, ip)
	if err != nil {
		return nil, apperr.Validationf("metadata is not serializable: %v", err)
	}

	return &database.Event{
		SiteID:      p.SiteID,
		EventType:   p.EventType,
		URL:         p.URL,
		Referrer:    optional(p.Referrer),
		UserAgent:   optional(p.UserAgent),
		SessionID:   optional(p.SessionID),
		IPAddress:   &ip,
		Metadata:    metadata,
		IsBot:       result.IsBot,
		ThreatScore: result.ThreatScore,
	}, nil
}

// buildMetadata serializes the open metadata map, folding in geo fields
// when a GeoIP database is available.
func (s *Service) buildMetadata(meta map[string]interface{}, ip string) (json.RawMessage, error) {
	var geo *enrichment.GeoResult
	if s.enricher != nil {
		geo = s.enricher.Lookup(ip)
	}

	if meta == nil && geo == nil {
		return nil, nil
	}

	merged := make(map[string]interface{}, len(meta)+3)
	for k, v := range meta {
		merged[k] = v
	}
	if geo != nil {
		if geo.Country != "" {
			merged["geo_country"] = geo.Country
		}
		if geo.City != "" {
			merged["geo_city"] = geo.City
		}
		if geo.Region != "" {
			merged["geo_region"] = geo.Region
		}
	}

	return json.Marshal(merged)
}

func validate(p Payload) error {
	if p.SiteID == "" {
		return apperr.Validationf("site_id is required")
	}
	if p.EventType == "" {
		return apperr.Validationf("event_type is required")
	}
	if p.URL == "" {
		return apperr.Validationf("url is required")
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
