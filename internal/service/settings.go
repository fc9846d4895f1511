package service

import (
	"context"
	"time"

	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/models"
)

// GetSettings returns the user's settings, or the defaults if the user has
// never saved any. Defaults are not persisted until the first save.
func (s *Service) GetSettings(userID string) (models.Settings, error) {
	records, err := s.store.GetCollection(userID, models.KindSettings)
	if err != nil {
		return models.Settings{}, err
	}
	if len(records) == 0 {
		return models.DefaultSettings(userID), nil
	}
	return models.SettingsFromRecord(records[0])
}

// SaveSettings upserts the user's single settings record. The first save
// creates it; later saves edit it in place.
func (s *Service) SaveSettings(ctx context.Context, in models.Settings) (models.Settings, error) {
	if err := checkInput(settingsInput{
		UserID:             in.UserID,
		FocusSeconds:       in.FocusSeconds,
		ShortBreakSeconds:  in.ShortBreakSeconds,
		LongBreakSeconds:   in.LongBreakSeconds,
		SessionsBeforeLong: in.SessionsBeforeLong,
	}); err != nil {
		return models.Settings{}, err
	}

	records, err := s.store.GetCollection(in.UserID, models.KindSettings)
	if err != nil {
		return models.Settings{}, err
	}

	in.UpdatedAt = time.Now().Unix()
	if len(records) == 0 {
		in.ID = ids.NewTemp()
		rec, err := in.ToRecord()
		if err != nil {
			return models.Settings{}, err
		}
		if err := s.create(ctx, models.KindSettings, rec); err != nil {
			return models.Settings{}, err
		}
		return in, nil
	}

	in.ID = records[0].ID
	rec, err := in.ToRecord()
	if err != nil {
		return models.Settings{}, err
	}
	if err := s.put(ctx, models.KindSettings, rec); err != nil {
		return models.Settings{}, err
	}
	return in, nil
}
