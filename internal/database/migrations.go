package database

import (
	"fmt"
)

// Migrate runs database migrations
func (db *DB) Migrate() error {
	// Create migrations table
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations")
	row.Scan(&currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				-- Event log (pageviews, clicks, custom events). Append-only:
				-- rows are never updated after insert. The CHECK constraints
				-- back up the ingestion-layer validation so a bad row can
				-- never land even through a direct store write.
				CREATE TABLE IF NOT EXISTS events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					site_id TEXT NOT NULL CHECK (site_id <> ''),
					event_type TEXT NOT NULL CHECK (event_type <> ''),
					url TEXT NOT NULL CHECK (url <> ''),
					referrer TEXT,
					user_agent TEXT,
					session_id TEXT,
					ip_address TEXT,
					metadata TEXT NOT NULL DEFAULT '{}',
					timestamp INTEGER NOT NULL,
					is_bot INTEGER NOT NULL DEFAULT 0,
					threat_score REAL NOT NULL DEFAULT 0,
					blocked INTEGER NOT NULL DEFAULT 0
				);

				-- Hot query paths for aggregation
				CREATE INDEX IF NOT EXISTS idx_events_site ON events(site_id);
				CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
				CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
				CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		_, err = tx.Exec(m.sql)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", m.version, err)
		}

		_, err = tx.Exec("INSERT INTO migrations (version, applied_at) VALUES (?, strftime('%s', 'now') * 1000)", m.version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
