package scanner

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotCache keeps the latest scan summary as a msgpack blob in the
// cache database so the dashboard can render without waiting for a
// fresh scan.
type SnapshotCache struct {
	db *sql.DB
}

// NewSnapshotCache creates a snapshot cache on the given database.
func NewSnapshotCache(db *sql.DB) *SnapshotCache {
	return &SnapshotCache{db: db}
}

// InitSchema creates the snapshot table.
func (c *SnapshotCache) InitSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_snapshots (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			scan_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			stored_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create scan_snapshots table: %w", err)
	}
	return nil
}

// Store overwrites the cached snapshot with the given summary.
func (c *SnapshotCache) Store(summary Summary) error {
	payload, err := msgpack.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO scan_snapshots (id, scan_id, payload, stored_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scan_id = excluded.scan_id,
			payload = excluded.payload,
			stored_at = excluded.stored_at
	`, summary.ScanID, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Latest returns the cached summary, or nil when no scan has run yet.
func (c *SnapshotCache) Latest() (*Summary, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM scan_snapshots WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var summary Summary
	if err := msgpack.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &summary, nil
}
