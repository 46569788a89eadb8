package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection holding the event log. Writes go through
// a single connection guarded by the mutex; sqlite works best with one
// writer. Every operation applies a bounded timeout via opTimeout.
type DB struct {
	conn      *sql.DB
	mu        sync.Mutex
	opTimeout time.Duration
}

func New(path string, opTimeout time.Duration) (*DB, error) {
	// Ensure data directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Enable WAL mode and other optimizations via connection string
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-20000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	return &DB{conn: conn, opTimeout: opTimeout}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

// ReadContext bounds ctx with the configured operation timeout. Callers
// issuing their own SQL through Conn() wrap their context here so read
// queries observe the same deadline as the store methods.
func (db *DB) ReadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.opTimeout)
}
