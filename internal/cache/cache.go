// Package cache persists whole-collection snapshots in a local sqlite
// database so a cold start can render without any remote reads. Reads are
// best-effort: any failure is reported as a cache miss, never as an error.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	owner_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	payload BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (owner_id, domain)
);`

// Store is the local cache substrate.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path and ensures the
// snapshot table exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Open: create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("Open: open cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: create snapshot table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadSnapshot returns the stored payload and save time for (owner, domain).
// ok is false when the snapshot is absent or unreadable; there is no error
// path on reads.
func (s *Store) ReadSnapshot(ownerID, domain string) (payload []byte, savedAt time.Time, ok bool) {
	row := s.db.QueryRow(
		`SELECT payload, saved_at FROM snapshots WHERE owner_id = ? AND domain = ?`,
		ownerID, domain)
	if err := row.Scan(&payload, &savedAt); err != nil {
		return nil, time.Time{}, false
	}
	if len(payload) == 0 {
		return nil, time.Time{}, false
	}
	return payload, savedAt, true
}

// WriteSnapshot stores payload for (owner, domain), replacing any previous
// snapshot.
func (s *Store) WriteSnapshot(ownerID, domain string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (owner_id, domain, payload, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, domain) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		ownerID, domain, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("WriteSnapshot: upsert %s/%s: %w", ownerID, domain, err)
	}
	return nil
}

// Clear removes the snapshot for one domain.
func (s *Store) Clear(ownerID, domain string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE owner_id = ? AND domain = ?`, ownerID, domain); err != nil {
		return fmt.Errorf("Clear: delete %s/%s: %w", ownerID, domain, err)
	}
	return nil
}

// ClearAll removes every snapshot owned by ownerID. Used on logout and
// account deletion.
func (s *Store) ClearAll(ownerID string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("ClearAll: delete snapshots for %s: %w", ownerID, err)
	}
	return nil
}
