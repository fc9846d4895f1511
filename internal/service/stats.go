package service

import (
	"time"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/models"
)

// FocusStats aggregates a user's focus sessions since a cutoff.
type FocusStats struct {
	TotalSessions     int            `json:"total_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	TotalFocusSeconds int            `json:"total_focus_seconds"`
	AvgFocusSeconds   int            `json:"avg_focus_seconds"`
	SessionsPerDay    map[string]int `json:"sessions_per_day"`
}

// GetFocusStats computes focus totals over local data only. Break intervals
// are excluded from the second counts; per-day buckets are UTC day keys.
func (s *Service) GetFocusStats(userID string, since time.Time) (FocusStats, error) {
	sessions, err := s.GetFocusSessions(userID)
	if err != nil {
		return FocusStats{}, err
	}

	stats := FocusStats{SessionsPerDay: make(map[string]int)}
	cutoff := since.Unix()
	for i := range sessions {
		f := &sessions[i]
		if f.Mode != models.ModeFocus || f.StartedAt < cutoff {
			continue
		}
		stats.TotalSessions++
		if f.Completed {
			stats.CompletedSessions++
		}
		stats.TotalFocusSeconds += f.ActualSeconds
		stats.SessionsPerDay[f.Day()]++
	}
	if stats.TotalSessions > 0 {
		stats.AvgFocusSeconds = stats.TotalFocusSeconds / stats.TotalSessions
	}
	return stats, nil
}

// HabitStreak returns the habit's current streak: the number of consecutive
// days checked, counting back from today. A streak survives an unchecked
// today, it only breaks once yesterday is also missed.
func (s *Service) HabitStreak(userID, habitID string) (int, error) {
	rec, err := s.load(userID, models.KindHabits, habitID)
	if err != nil {
		return 0, err
	}
	h, err := models.HabitFromRecord(rec)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStorage, "habit payload unreadable", err)
	}
	return streakOn(&h, time.Now().UTC()), nil
}

func streakOn(h *models.Habit, today time.Time) int {
	day := today
	if !h.CompletedOn(day.Format("2006-01-02")) {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for h.CompletedOn(day.Format("2006-01-02")) {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
