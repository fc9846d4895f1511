package service

import (
	"context"
	"time"

	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/models"
)

// GetFocusSessions returns the user's focus sessions from the local store.
func (s *Service) GetFocusSessions(userID string) ([]models.FocusSession, error) {
	records, err := s.store.GetCollection(userID, models.KindFocusSessions)
	if err != nil {
		return nil, err
	}
	return decodeEach(records, models.FocusSessionFromRecord), nil
}

// RecordFocusSession stores a finished timer interval. Sessions are
// append-only; the timer writes one when an interval completes or is
// abandoned partway.
func (s *Service) RecordFocusSession(ctx context.Context, f models.FocusSession) (models.FocusSession, error) {
	if err := checkInput(focusSessionInput{
		UserID:         f.UserID,
		Mode:           f.Mode,
		PlannedSeconds: f.PlannedSeconds,
		ActualSeconds:  f.ActualSeconds,
		StartedAt:      f.StartedAt,
	}); err != nil {
		return models.FocusSession{}, err
	}

	f.ID = ids.NewTemp()
	if f.EndedAt == 0 {
		f.EndedAt = time.Now().Unix()
	}
	f.UpdatedAt = time.Now().Unix()

	rec, err := f.ToRecord()
	if err != nil {
		return models.FocusSession{}, err
	}
	if err := s.create(ctx, models.KindFocusSessions, rec); err != nil {
		return models.FocusSession{}, err
	}
	return f, nil
}

// DeleteFocusSession removes a logged session, for correcting mistakes.
func (s *Service) DeleteFocusSession(ctx context.Context, userID, id string) error {
	return s.remove(ctx, userID, models.KindFocusSessions, id)
}
