package service

import (
	"context"
	"time"

	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/models"
)

// GetAssignments returns the user's assignments from the local store. It
// never touches the network.
func (s *Service) GetAssignments(userID string) ([]models.Assignment, error) {
	records, err := s.store.GetCollection(userID, models.KindAssignments)
	if err != nil {
		return nil, err
	}
	return decodeEach(records, models.AssignmentFromRecord), nil
}

// SaveAssignment creates an assignment with a temporary id and returns it
// immediately so callers can render before any network round trip.
func (s *Service) SaveAssignment(ctx context.Context, a models.Assignment) (models.Assignment, error) {
	if err := checkInput(assignmentInput{UserID: a.UserID, Title: a.Title, Status: a.Status}); err != nil {
		return models.Assignment{}, err
	}

	a.ID = ids.NewTemp()
	if a.Status == "" {
		a.Status = models.AssignmentStatusTodo
	}
	a.UpdatedAt = time.Now().Unix()

	rec, err := a.ToRecord()
	if err != nil {
		return models.Assignment{}, err
	}
	if err := s.create(ctx, models.KindAssignments, rec); err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

// AssignmentPatch holds the fields an update may change; nil leaves a field
// untouched.
type AssignmentPatch struct {
	Title     *string `json:"title,omitempty"`
	Course    *string `json:"course,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	DueAt     *int64  `json:"due_at,omitempty"`
	Status    *string `json:"status,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// UpdateAssignment applies a patch locally and queues the remote write. The
// id may still be temporary; the queue remap takes care of it.
func (s *Service) UpdateAssignment(ctx context.Context, userID, id string, patch AssignmentPatch) error {
	rec, err := s.load(userID, models.KindAssignments, id)
	if err != nil {
		return err
	}
	a, err := models.AssignmentFromRecord(rec)
	if err != nil {
		return err
	}

	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Course != nil {
		a.Course = *patch.Course
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
	if patch.DueAt != nil {
		a.DueAt = *patch.DueAt
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.Completed != nil {
		a.Completed = *patch.Completed
	}

	if err := checkInput(assignmentInput{UserID: a.UserID, Title: a.Title, Status: a.Status}); err != nil {
		return err
	}

	a.UpdatedAt = time.Now().Unix()
	updated, err := a.ToRecord()
	if err != nil {
		return err
	}
	return s.put(ctx, models.KindAssignments, updated)
}

// DeleteAssignment removes the assignment locally and queues the remote
// delete, or cancels an unsent create outright.
func (s *Service) DeleteAssignment(ctx context.Context, userID, id string) error {
	return s.remove(ctx, userID, models.KindAssignments, id)
}
