// Package models provides data model definitions for the studyflow backend.
package models

import (
	"encoding/json"
	"time"
)

// Kind identifies a collection of records.
type Kind string

const (
	KindAssignments   Kind = "assignments"
	KindHabits        Kind = "habits"
	KindSettings      Kind = "settings"
	KindFocusSessions Kind = "focus_sessions"
)

// Kinds lists every collection kind in sync order.
var Kinds = []Kind{KindAssignments, KindHabits, KindSettings, KindFocusSessions}

// Valid reports whether k names a known collection.
func (k Kind) Valid() bool {
	switch k {
	case KindAssignments, KindHabits, KindSettings, KindFocusSessions:
		return true
	}
	return false
}

// Record is the envelope the sync layer operates on. Domain fields live in
// Payload and stay opaque to the store, queue, and engine; only the envelope
// (id, owner, timestamp) participates in merge and remap decisions.
type Record struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	UpdatedAt int64           `db:"updated_at" json:"updated_at"`
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (r *Record) UpdatedAtTime() time.Time {
	return time.Unix(r.UpdatedAt, 0)
}

// Touch updates the UpdatedAt timestamp to now.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().Unix()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() Record {
	payload := make(json.RawMessage, len(r.Payload))
	copy(payload, r.Payload)
	return Record{
		ID:        r.ID,
		UserID:    r.UserID,
		Payload:   payload,
		UpdatedAt: r.UpdatedAt,
	}
}
