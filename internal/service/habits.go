package service

import (
	"context"
	"time"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/models"
)

// GetHabits returns the user's habits from the local store.
func (s *Service) GetHabits(userID string) ([]models.Habit, error) {
	records, err := s.store.GetCollection(userID, models.KindHabits)
	if err != nil {
		return nil, err
	}
	return decodeEach(records, models.HabitFromRecord), nil
}

// SaveHabit creates a habit with a temporary id.
func (s *Service) SaveHabit(ctx context.Context, h models.Habit) (models.Habit, error) {
	if err := checkInput(habitInput{UserID: h.UserID, Name: h.Name, Schedule: h.Schedule}); err != nil {
		return models.Habit{}, err
	}

	h.ID = ids.NewTemp()
	if h.Schedule == "" {
		h.Schedule = "daily"
	}
	h.UpdatedAt = time.Now().Unix()

	rec, err := h.ToRecord()
	if err != nil {
		return models.Habit{}, err
	}
	if err := s.create(ctx, models.KindHabits, rec); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

// HabitPatch holds the fields an update may change.
type HabitPatch struct {
	Name     *string `json:"name,omitempty"`
	Schedule *string `json:"schedule,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// UpdateHabit applies a patch locally and queues the remote write.
func (s *Service) UpdateHabit(ctx context.Context, userID, id string, patch HabitPatch) error {
	rec, err := s.load(userID, models.KindHabits, id)
	if err != nil {
		return err
	}
	h, err := models.HabitFromRecord(rec)
	if err != nil {
		return err
	}

	if patch.Name != nil {
		h.Name = *patch.Name
	}
	if patch.Schedule != nil {
		h.Schedule = *patch.Schedule
	}
	if patch.Archived != nil {
		h.Archived = *patch.Archived
	}

	if err := checkInput(habitInput{UserID: h.UserID, Name: h.Name, Schedule: h.Schedule}); err != nil {
		return err
	}

	h.UpdatedAt = time.Now().Unix()
	updated, err := h.ToRecord()
	if err != nil {
		return err
	}
	return s.put(ctx, models.KindHabits, updated)
}

// CheckHabit toggles the habit's completion for a YYYY-MM-DD day key.
func (s *Service) CheckHabit(ctx context.Context, userID, id, day string) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return apperr.Wrap(apperr.ErrInvalid, "day must be YYYY-MM-DD", err)
	}

	rec, err := s.load(userID, models.KindHabits, id)
	if err != nil {
		return err
	}
	h, err := models.HabitFromRecord(rec)
	if err != nil {
		return err
	}

	if h.CompletedOn(day) {
		kept := h.CompletedDates[:0]
		for _, d := range h.CompletedDates {
			if d != day {
				kept = append(kept, d)
			}
		}
		h.CompletedDates = kept
	} else {
		h.CompletedDates = append(h.CompletedDates, day)
	}

	h.UpdatedAt = time.Now().Unix()
	updated, err := h.ToRecord()
	if err != nil {
		return err
	}
	return s.put(ctx, models.KindHabits, updated)
}

// DeleteHabit removes the habit locally and queues the remote delete.
func (s *Service) DeleteHabit(ctx context.Context, userID, id string) error {
	return s.remove(ctx, userID, models.KindHabits, id)
}
