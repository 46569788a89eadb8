package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ghosttrack/ghosttrack/internal/apperr"
)

// Event is one recorded visitor action. Rows are immutable after insert;
// is_bot and threat_score are set once at ingestion and never recomputed.
type Event struct {
	ID          int64           `json:"id"`
	SiteID      string          `json:"site_id"`
	EventType   string          `json:"event_type"`
	URL         string          `json:"url"`
	Referrer    *string         `json:"referrer,omitempty"`
	UserAgent   *string         `json:"user_agent,omitempty"`
	SessionID   *string         `json:"session_id,omitempty"`
	IPAddress   *string         `json:"ip_address,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	IsBot       bool            `json:"is_bot"`
	ThreatScore float64         `json:"threat_score"`
	Blocked     bool            `json:"blocked"`
}

// Filter is a conjunction over the indexed event columns. Zero values mean
// "no constraint". The string fields match by exact equality; only the
// timestamp filters by range, inclusive on both ends.
type Filter struct {
	SiteID    string
	EventType string
	SessionID string
	Start     time.Time
	End       time.Time
	Desc      bool
	Limit     int
}

// where builds a WHERE clause from the active filter fields.
func (f Filter) where() (string, []interface{}) {
	where := "1=1"
	args := []interface{}{}

	if f.SiteID != "" {
		where += " AND site_id = ?"
		args = append(args, f.SiteID)
	}
	if f.EventType != "" {
		where += " AND event_type = ?"
		args = append(args, f.EventType)
	}
	if f.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if !f.Start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, f.Start.UnixMilli())
	}
	if !f.End.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, f.End.UnixMilli())
	}
	return where, args
}

// GroupCount is one bucket of an aggregation, ordered for top-N
// presentation: count descending, then group key ascending so equal counts
// come out in a deterministic order.
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Fields events may be grouped by. Guards Aggregate against interpolating
// caller input into SQL.
var groupableFields = map[string]bool{
	"event_type": true,
	"site_id":    true,
	"session_id": true,
}

const eventColumns = `id, site_id, event_type, url, referrer, user_agent,
	session_id, ip_address, metadata, timestamp, is_bot, threat_score, blocked`

func (db *DB) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return db.ReadContext(ctx)
}

// InsertEvent persists a single event and returns its assigned identifier.
// The timestamp is assigned here if the caller left it zero.
func (db *DB) InsertEvent(ctx context.Context, e *Event) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	ctx, cancel := db.bounded(ctx)
	defer cancel()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO events (
			site_id, event_type, url, referrer, user_agent, session_id,
			ip_address, metadata, timestamp, is_bot, threat_score, blocked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, insertArgs(e)...)
	if err != nil {
		return 0, apperr.Storagef("insert event: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storagef("read inserted id: %v", err)
	}
	e.ID = id
	return id, nil
}

// InsertEvents persists a batch in one transaction. On any failure nothing
// from the batch is committed.
func (db *DB) InsertEvents(ctx context.Context, events []*Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	ctx, cancel := db.bounded(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Storagef("begin batch: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (
			site_id, event_type, url, referrer, user_agent, session_id,
			ip_address, metadata, timestamp, is_bot, threat_score, blocked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, apperr.Storagef("prepare batch insert: %v", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		res, err := stmt.ExecContext(ctx, insertArgs(e)...)
		if err != nil {
			return 0, apperr.Storagef("insert batch event: %v", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			e.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Storagef("commit batch: %v", err)
	}
	return len(events), nil
}

// GetEvent returns one event by identifier.
func (db *DB) GetEvent(ctx context.Context, id int64) (*Event, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)

	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("event %d", id)
	}
	if err != nil {
		return nil, apperr.Storagef("get event %d: %v", id, err)
	}
	return e, nil
}

// QueryEvents returns events matching the filter, ordered by timestamp.
func (db *DB) QueryEvents(ctx context.Context, f Filter) ([]*Event, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	where, args := f.where()

	order := "ASC"
	if f.Desc {
		order = "DESC"
	}
	// id breaks ties between events sharing a millisecond
	query := "SELECT " + eventColumns + " FROM events WHERE " + where +
		" ORDER BY timestamp " + order + ", id " + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storagef("query events: %v", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperr.Storagef("scan event: %v", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate events: %v", err)
	}
	return events, nil
}

// AggregateEvents groups matching events by one field and counts them,
// ordered count descending with a stable key-ascending tie-break.
func (db *DB) AggregateEvents(ctx context.Context, groupBy string, f Filter) ([]GroupCount, error) {
	if !groupableFields[groupBy] {
		return nil, apperr.Validationf("cannot group events by %q", groupBy)
	}

	ctx, cancel := db.bounded(ctx)
	defer cancel()

	where, args := f.where()
	query := "SELECT " + groupBy + ", COUNT(*) FROM events WHERE " + where +
		" AND " + groupBy + " IS NOT NULL GROUP BY " + groupBy +
		" ORDER BY COUNT(*) DESC, " + groupBy + " ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storagef("aggregate events: %v", err)
	}
	defer rows.Close()

	var groups []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, apperr.Storagef("scan group: %v", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storagef("iterate groups: %v", err)
	}
	return groups, nil
}

// EventCount returns the total number of stored events.
func (db *DB) EventCount(ctx context.Context) (int64, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count)
	if err != nil {
		return 0, apperr.Storagef("count events: %v", err)
	}
	return count, nil
}

func insertArgs(e *Event) []interface{} {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}
	return []interface{}{
		e.SiteID, e.EventType, e.URL, e.Referrer, e.UserAgent, e.SessionID,
		e.IPAddress, metadata, e.Timestamp.UnixMilli(), e.IsBot, e.ThreatScore, e.Blocked,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e        Event
		metadata string
		ts       int64
	)
	err := row.Scan(
		&e.ID, &e.SiteID, &e.EventType, &e.URL, &e.Referrer, &e.UserAgent,
		&e.SessionID, &e.IPAddress, &metadata, &ts, &e.IsBot, &e.ThreatScore, &e.Blocked,
	)
	if err != nil {
		return nil, err
	}
	e.Metadata = json.RawMessage(metadata)
	e.Timestamp = time.UnixMilli(ts)
	return &e, nil
}
