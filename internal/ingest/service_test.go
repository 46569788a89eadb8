package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
	"github.com/ghosttrack/ghosttrack/internal/classifier"
	"github.com/ghosttrack/ghosttrack/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	svc := New(db, classifier.NewKeyword(), nil, zap.NewNop())
	return svc, db
}

func validPayload() Payload {
	return Payload{
		SiteID:    "s1",
		EventType: "pageview",
		URL:       "https://shop.example/products",
		Referrer:  "https://google.com",
		UserAgent: "Mozilla/5.0 (Macintosh)",
		SessionID: "sess-A",
		Metadata:  map[string]interface{}{"color": "red"},
	}
}

func TestTrack_PersistsEvent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	result, err := svc.Track(ctx, validPayload(), ClientInfo{RemoteAddr: "203.0.113.7:51234"})
	require.NoError(t, err)
	assert.Positive(t, result.EventID)
	assert.False(t, result.IsBot)
	assert.Zero(t, result.ThreatScore)

	got, err := db.GetEvent(ctx, result.EventID)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SiteID)
	assert.Equal(t, "pageview", got.EventType)
	assert.Equal(t, "203.0.113.7", *got.IPAddress)
	assert.Equal(t, "sess-A", *got.SessionID)
	assert.JSONEq(t, `{"color":"red"}`, string(got.Metadata))
	assert.False(t, got.Timestamp.IsZero())
}

func TestTrack_ClassifiesBotTraffic(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	p := validPayload()
	p.UserAgent = "curl/7.0"
	p.URL = "https://shop.example/admin/../secret"

	result, err := svc.Track(ctx, p, ClientInfo{RemoteAddr: "203.0.113.7:51234"})
	require.NoError(t, err)
	assert.True(t, result.IsBot)
	assert.Equal(t, 70.0, result.ThreatScore)

	got, err := db.GetEvent(ctx, result.EventID)
	require.NoError(t, err)
	assert.True(t, got.IsBot)
	assert.Equal(t, 70.0, got.ThreatScore)
}

func TestTrack_ValidationFailureWritesNothing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Payload)
	}{
		{"missing site_id", func(p *Payload) { p.SiteID = "" }},
		{"missing event_type", func(p *Payload) { p.EventType = "" }},
		{"missing url", func(p *Payload) { p.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)

			_, err := svc.Track(ctx, p, ClientInfo{RemoteAddr: "203.0.113.7:51234"})
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}

	count, err := db.EventCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestTrack_IPPrecedence(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		client ClientInfo
		want   string
	}{
		{
			name:   "forwarding header first entry",
			client: ClientInfo{RemoteAddr: "10.0.0.1:443", ForwardedFor: "203.0.113.7, 10.0.0.1", RealIP: "198.51.100.2"},
			want:   "203.0.113.7",
		},
		{
			name:   "real ip over remote addr",
			client: ClientInfo{RemoteAddr: "10.0.0.1:443", RealIP: "198.51.100.2"},
			want:   "198.51.100.2",
		},
		{
			name:   "direct connection",
			client: ClientInfo{RemoteAddr: "192.0.2.4:8080"},
			want:   "192.0.2.4",
		},
		{
			name:   "unknown sentinel",
			client: ClientInfo{},
			want:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Track(ctx, validPayload(), tt.client)
			require.NoError(t, err)

			got, err := db.GetEvent(ctx, result.EventID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got.IPAddress)
		})
	}
}

func TestTrackBatch_AllOrNothing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	bad := validPayload()
	bad.SiteID = ""

	payloads := []Payload{validPayload(), validPayload(), validPayload(), bad}

	_, err := svc.TrackBatch(ctx, payloads, ClientInfo{RemoteAddr: "203.0.113.7:51234"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	count, err := db.EventCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestTrackBatch_Success(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payloads := []Payload{validPayload(), validPayload(), validPayload()}

	count, err := svc.TrackBatch(ctx, payloads, ClientInfo{RemoteAddr: "203.0.113.7:51234"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	total, err := db.EventCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestTrackBatch_EmptyRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TrackBatch(context.Background(), nil, ClientInfo{})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}
