package models

import (
	"encoding/json"
	"time"
)

// OpType is the kind of mutation a pending operation carries.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// PendingOperation is a queued, not-yet-confirmed mutation awaiting network
// availability. The ID doubles as the idempotency key sent to the backend,
// so replaying the same operation after a crash cannot duplicate records.
type PendingOperation struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	Kind       Kind            `db:"kind" json:"kind"`
	Type       OpType          `db:"op_type" json:"type"`
	RecordID   string          `db:"record_id" json:"record_id"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`

	// Seq is the queue position assigned by the store; operations on the
	// same record replay in Seq order.
	Seq int64 `db:"seq" json:"-"`
}

// CreatedAtTime returns CreatedAt as time.Time.
func (op *PendingOperation) CreatedAtTime() time.Time {
	return time.Unix(op.CreatedAt, 0)
}
