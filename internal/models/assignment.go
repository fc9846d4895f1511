package models

import "encoding/json"

// Assignment statuses.
const (
	AssignmentStatusTodo       = "todo"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusDone       = "done"
)

// Assignment is the typed view of an assignment record's payload.
type Assignment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Course    string `json:"course,omitempty"`
	Notes     string `json:"notes,omitempty"`
	DueAt     int64  `json:"due_at,omitempty"`
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
	UpdatedAt int64  `json:"updated_at"`
}

// ToRecord packs the assignment into a sync envelope.
func (a *Assignment) ToRecord() (Record, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: a.ID, UserID: a.UserID, Payload: payload, UpdatedAt: a.UpdatedAt}, nil
}

// AssignmentFromRecord unpacks a sync envelope into a typed assignment.
// The envelope fields win over any stale copies inside the payload.
func AssignmentFromRecord(r Record) (Assignment, error) {
	var a Assignment
	if err := json.Unmarshal(r.Payload, &a); err != nil {
		return Assignment{}, err
	}
	a.ID = r.ID
	a.UserID = r.UserID
	a.UpdatedAt = r.UpdatedAt
	return a, nil
}
