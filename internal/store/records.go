package store

import (
	"database/sql"

	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
)

// GetCollection returns all records of a kind for a user in insertion order.
// Absent data yields an empty slice, never an error.
func (s *Store) GetCollection(userID string, kind models.Kind) ([]models.Record, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, payload, updated_at FROM records
		 WHERE user_id = ? AND kind = ? ORDER BY rowid`,
		userID, kind,
	)
	if err != nil {
		return nil, storageErr("query collection", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Payload, &r.UpdatedAt); err != nil {
			return nil, storageErr("scan record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate collection", err)
	}
	return records, nil
}

// GetRecord returns one record by id. The second return value reports
// whether the record exists.
func (s *Store) GetRecord(userID string, kind models.Kind, id string) (models.Record, bool, error) {
	var r models.Record
	err := s.db.QueryRow(
		`SELECT id, user_id, payload, updated_at FROM records
		 WHERE user_id = ? AND kind = ? AND id = ?`,
		userID, kind, id,
	).Scan(&r.ID, &r.UserID, &r.Payload, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Record{}, false, nil
	}
	if err != nil {
		return models.Record{}, false, storageErr("read record", err)
	}
	return r, true, nil
}

// PutRecord upserts a record by id. The upsert preserves the row's original
// insertion position so GetCollection ordering stays stable across edits.
func (s *Store) PutRecord(userID string, kind models.Kind, rec models.Record) error {
	_, err := s.db.Exec(
		`INSERT INTO records (user_id, kind, id, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, kind, id) DO UPDATE SET
		   payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, kind, rec.ID, []byte(rec.Payload), rec.UpdatedAt,
	)
	if err != nil {
		return storageErr("put record", err)
	}
	return nil
}

// DeleteRecord removes a record by id; deleting an absent record is a no-op.
func (s *Store) DeleteRecord(userID string, kind models.Kind, id string) error {
	_, err := s.db.Exec(
		`DELETE FROM records WHERE user_id = ? AND kind = ? AND id = ?`,
		userID, kind, id,
	)
	if err != nil {
		return storageErr("delete record", err)
	}
	return nil
}

// RemapID rewrites a record's id and every queued operation referencing it,
// in one transaction. Nothing else may observe the old id once this returns.
func (s *Store) RemapID(kind models.Kind, oldID, newID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin remap", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE records SET id = ? WHERE kind = ? AND id = ?`,
		newID, kind, oldID,
	); err != nil {
		return storageErr("remap record id", err)
	}
	if _, err := tx.Exec(
		`UPDATE pending_ops SET record_id = ? WHERE kind = ? AND record_id = ?`,
		newID, kind, oldID,
	); err != nil {
		return storageErr("remap queued operations", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit remap", err)
	}

	logging.Debug("remapped record id", logging.Fields{
		"kind": string(kind), "old_id": oldID, "new_id": newID,
	})
	return nil
}

// MergeCollection reconciles remote records into the local collection using
// last-writer-wins per record. A remote record unknown locally is inserted;
// a known one replaces the local copy only if strictly newer. Ties keep the
// local version: un-synced local edits are presumed intentional and must not
// be lost. Returns the number of records inserted or replaced.
func (s *Store) MergeCollection(userID string, kind models.Kind, remote []models.Record) (int, error) {
	applied := 0
	for _, rr := range remote {
		local, exists, err := s.GetRecord(userID, kind, rr.ID)
		if err != nil {
			return applied, err
		}
		if exists && local.UpdatedAt >= rr.UpdatedAt {
			continue
		}
		if err := s.PutRecord(userID, kind, rr); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
