package models

import "encoding/json"

// Default timer durations in seconds.
const (
	DefaultFocusSeconds      = 25 * 60
	DefaultShortBreakSeconds = 5 * 60
	DefaultLongBreakSeconds  = 15 * 60
)

// Settings is the typed view of a user's settings record. Each user owns at
// most one settings record.
type Settings struct {
	ID                   string `json:"id"`
	UserID               string `json:"user_id"`
	FocusSeconds         int    `json:"focus_seconds"`
	ShortBreakSeconds    int    `json:"short_break_seconds"`
	LongBreakSeconds     int    `json:"long_break_seconds"`
	SessionsBeforeLong   int    `json:"sessions_before_long"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	UpdatedAt            int64  `json:"updated_at"`
}

// DefaultSettings returns settings with standard pomodoro durations.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:             userID,
		FocusSeconds:       DefaultFocusSeconds,
		ShortBreakSeconds:  DefaultShortBreakSeconds,
		LongBreakSeconds:   DefaultLongBreakSeconds,
		SessionsBeforeLong: 4,
	}
}

// ToRecord packs the settings into a sync envelope.
func (s *Settings) ToRecord() (Record, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: s.ID, UserID: s.UserID, Payload: payload, UpdatedAt: s.UpdatedAt}, nil
}

// SettingsFromRecord unpacks a sync envelope into typed settings.
func SettingsFromRecord(r Record) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		return Settings{}, err
	}
	s.ID = r.ID
	s.UserID = r.UserID
	s.UpdatedAt = r.UpdatedAt
	return s, nil
}
