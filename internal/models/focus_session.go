package models

import (
	"encoding/json"
	"time"
)

// Focus timer modes.
const (
	ModeFocus      = "focus"
	ModeShortBreak = "short_break"
	ModeLongBreak  = "long_break"
)

// FocusSession records one completed or abandoned pomodoro interval.
type FocusSession struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Mode           string `json:"mode"`
	PlannedSeconds int    `json:"planned_seconds"`
	ActualSeconds  int    `json:"actual_seconds"`
	StartedAt      int64  `json:"started_at"`
	EndedAt        int64  `json:"ended_at"`
	Completed      bool   `json:"completed"`
	UpdatedAt      int64  `json:"updated_at"`
}

// ToRecord packs the session into a sync envelope.
func (f *FocusSession) ToRecord() (Record, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: f.ID, UserID: f.UserID, Payload: payload, UpdatedAt: f.UpdatedAt}, nil
}

// FocusSessionFromRecord unpacks a sync envelope into a typed session.
func FocusSessionFromRecord(r Record) (FocusSession, error) {
	var f FocusSession
	if err := json.Unmarshal(r.Payload, &f); err != nil {
		return FocusSession{}, err
	}
	f.ID = r.ID
	f.UserID = r.UserID
	f.UpdatedAt = r.UpdatedAt
	return f, nil
}

// Day returns the YYYY-MM-DD day key of the session start, in UTC.
func (f *FocusSession) Day() string {
	return time.Unix(f.StartedAt, 0).UTC().Format("2006-01-02")
}
