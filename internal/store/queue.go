package store

import (
	"time"

	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
)

// EnqueueOperation appends an operation to the durable queue. The store
// assigns the queue sequence; operations on the same record replay in the
// order they were enqueued.
func (s *Store) EnqueueOperation(op *models.PendingOperation) error {
	if op.CreatedAt == 0 {
		op.CreatedAt = time.Now().Unix()
	}

	res, err := s.db.Exec(
		`INSERT INTO pending_ops (id, user_id, kind, op_type, record_id, payload, retry_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.UserID, op.Kind, op.Type, op.RecordID, []byte(op.Payload), op.RetryCount, op.CreatedAt,
	)
	if err != nil {
		return storageErr("enqueue operation", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		op.Seq = seq
	}

	logging.Debug("enqueued operation", logging.Fields{
		"op_id": op.ID, "type": string(op.Type), "kind": string(op.Kind), "record_id": op.RecordID,
	})
	return nil
}

// DequeueOperation removes an operation after confirmed remote success.
// Removing an already-removed operation is a no-op: a crash between remote
// success and dequeue leaves the operation behind, and replay is covered by
// the idempotency key.
func (s *Store) DequeueOperation(opID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_ops WHERE id = ?`, opID)
	if err != nil {
		return storageErr("dequeue operation", err)
	}
	return nil
}

// ListOperations returns every queued operation in enqueue order.
func (s *Store) ListOperations() ([]models.PendingOperation, error) {
	rows, err := s.db.Query(
		`SELECT seq, id, user_id, kind, op_type, record_id, payload, retry_count, created_at
		 FROM pending_ops ORDER BY seq`,
	)
	if err != nil {
		return nil, storageErr("list operations", err)
	}
	defer rows.Close()

	ops := []models.PendingOperation{}
	for rows.Next() {
		var op models.PendingOperation
		if err := rows.Scan(&op.Seq, &op.ID, &op.UserID, &op.Kind, &op.Type,
			&op.RecordID, &op.Payload, &op.RetryCount, &op.CreatedAt); err != nil {
			return nil, storageErr("scan operation", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate operations", err)
	}
	return ops, nil
}

// GetOperation returns one queued operation by id.
func (s *Store) GetOperation(opID string) (models.PendingOperation, bool, error) {
	rows, err := s.db.Query(
		`SELECT seq, id, user_id, kind, op_type, record_id, payload, retry_count, created_at
		 FROM pending_ops WHERE id = ?`, opID,
	)
	if err != nil {
		return models.PendingOperation{}, false, storageErr("get operation", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.PendingOperation{}, false, rows.Err()
	}
	var op models.PendingOperation
	if err := rows.Scan(&op.Seq, &op.ID, &op.UserID, &op.Kind, &op.Type,
		&op.RecordID, &op.Payload, &op.RetryCount, &op.CreatedAt); err != nil {
		return models.PendingOperation{}, false, storageErr("scan operation", err)
	}
	return op, true, nil
}

// DequeueIfUnchanged removes an operation only if its payload still matches
// what the caller sent. The delete is conditional in one statement, so a
// payload folded in concurrently can never be lost to the removal: the row
// survives and reports false.
func (s *Store) DequeueIfUnchanged(opID string, payload []byte) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM pending_ops WHERE id = ? AND payload = ?`, opID, payload,
	)
	if err != nil {
		return false, storageErr("dequeue operation", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ConvertToUpdate rewrites a queued create into an update in place, keeping
// its payload and queue position. Used when the create already succeeded
// remotely with an older payload: the row's current payload must still reach
// the backend, now as an update on the remapped id.
func (s *Store) ConvertToUpdate(opID string) error {
	if _, err := s.db.Exec(
		`UPDATE pending_ops SET op_type = ? WHERE id = ?`, models.OpUpdate, opID,
	); err != nil {
		return storageErr("convert operation to update", err)
	}
	return nil
}

// PendingCreateFor returns the queued create operation for a record, if one
// exists. A record with a pending create has never been acknowledged by the
// remote store.
func (s *Store) PendingCreateFor(kind models.Kind, recordID string) (models.PendingOperation, bool, error) {
	rows, err := s.db.Query(
		`SELECT seq, id, user_id, kind, op_type, record_id, payload, retry_count, created_at
		 FROM pending_ops WHERE kind = ? AND record_id = ? AND op_type = ? ORDER BY seq LIMIT 1`,
		kind, recordID, models.OpCreate,
	)
	if err != nil {
		return models.PendingOperation{}, false, storageErr("find pending create", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.PendingOperation{}, false, rows.Err()
	}
	var op models.PendingOperation
	if err := rows.Scan(&op.Seq, &op.ID, &op.UserID, &op.Kind, &op.Type,
		&op.RecordID, &op.Payload, &op.RetryCount, &op.CreatedAt); err != nil {
		return models.PendingOperation{}, false, storageErr("scan pending create", err)
	}
	return op, true, nil
}

// UpdateOperationPayload replaces a queued operation's payload in place.
// Used to fold local edits into a not-yet-sent create so the record reaches
// the backend in one call, with its final contents.
func (s *Store) UpdateOperationPayload(opID string, payload []byte) error {
	_, err := s.db.Exec(`UPDATE pending_ops SET payload = ? WHERE id = ?`, payload, opID)
	if err != nil {
		return storageErr("update operation payload", err)
	}
	return nil
}

// PendingCount returns the number of queued operations.
func (s *Store) PendingCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_ops`).Scan(&n); err != nil {
		return 0, storageErr("count operations", err)
	}
	return n, nil
}

// IncrementRetry bumps an operation's retry count after a transient failure
// and returns the new count.
func (s *Store) IncrementRetry(opID string) (int, error) {
	if _, err := s.db.Exec(
		`UPDATE pending_ops SET retry_count = retry_count + 1 WHERE id = ?`, opID,
	); err != nil {
		return 0, storageErr("increment retry count", err)
	}
	var n int
	if err := s.db.QueryRow(
		`SELECT retry_count FROM pending_ops WHERE id = ?`, opID,
	).Scan(&n); err != nil {
		return 0, storageErr("read retry count", err)
	}
	return n, nil
}

// RemoveOperationsForRecord drops every queued operation targeting a record
// and returns how many were removed. Used when a record is deleted before
// its create ever reached the remote store.
func (s *Store) RemoveOperationsForRecord(kind models.Kind, recordID string) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM pending_ops WHERE kind = ? AND record_id = ?`, kind, recordID,
	)
	if err != nil {
		return 0, storageErr("remove operations for record", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Debug("cancelled queued operations", logging.Fields{
			"kind": string(kind), "record_id": recordID, "count": n,
		})
	}
	return int(n), nil
}
