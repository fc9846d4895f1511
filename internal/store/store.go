// Package store provides durable local persistence for domain records and
// the pending-operation queue.
//
// Every read the application performs is served from here; the remote store
// is only ever eventually consistent with this one. Records are stored as an
// opaque payload under a (user, kind, id) key so the store needs no knowledge
// of domain fields.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperr "github.com/studyflow/backend/internal/errors"
)

// Store wraps the local SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	user_id    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, kind, id)
);

CREATE TABLE IF NOT EXISTS pending_ops (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	user_id     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	op_type     TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	payload     BLOB,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_ops_record ON pending_ops (kind, record_id);

CREATE TABLE IF NOT EXISTS sync_state (
	user_id        TEXT PRIMARY KEY,
	last_synced_at INTEGER NOT NULL
);
`

// Open opens the local store under dataDir, creating the database and schema
// as needed. The database uses WAL mode and a single writer connection.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "studyflow.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "failed to open database", err)
	}

	// SQLite supports a single writer; serialize everything through one
	// connection so queue and record mutations never interleave mid-write.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrStorage, "failed to enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrStorage, "failed to enable foreign keys", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrStorage, "failed to create schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastSyncedAt returns the unix timestamp of the user's last completed sync,
// or zero if the user has never synced.
func (s *Store) LastSyncedAt(userID string) (int64, error) {
	var ts int64
	err := s.db.QueryRow(
		`SELECT last_synced_at FROM sync_state WHERE user_id = ?`, userID,
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStorage, "failed to read sync state", err)
	}
	return ts, nil
}

// SetLastSyncedAt records the user's last completed sync time.
func (s *Store) SetLastSyncedAt(userID string, ts int64) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_state (user_id, last_synced_at) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET last_synced_at = excluded.last_synced_at`,
		userID, ts,
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrStorage, "failed to write sync state", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return apperr.Wrap(apperr.ErrStorage, fmt.Sprintf("failed to %s", op), err)
}
