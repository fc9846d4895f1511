package models

import "encoding/json"

// Habit is the typed view of a habit record's payload. CompletedDates holds
// YYYY-MM-DD day keys, newest appended last.
type Habit struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	Schedule       string   `json:"schedule,omitempty"` // daily, weekdays, weekly
	CompletedDates []string `json:"completed_dates,omitempty"`
	Archived       bool     `json:"archived"`
	UpdatedAt      int64    `json:"updated_at"`
}

// ToRecord packs the habit into a sync envelope.
func (h *Habit) ToRecord() (Record, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: h.ID, UserID: h.UserID, Payload: payload, UpdatedAt: h.UpdatedAt}, nil
}

// HabitFromRecord unpacks a sync envelope into a typed habit.
func HabitFromRecord(r Record) (Habit, error) {
	var h Habit
	if err := json.Unmarshal(r.Payload, &h); err != nil {
		return Habit{}, err
	}
	h.ID = r.ID
	h.UserID = r.UserID
	h.UpdatedAt = r.UpdatedAt
	return h, nil
}

// CompletedOn reports whether the habit was checked on the given day key.
func (h *Habit) CompletedOn(day string) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}
