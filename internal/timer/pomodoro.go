// Package timer implements the pomodoro countdown state machine. The timer
// itself never touches the network or the store directly; finished
// intervals are handed to a Recorder, which queues them like any other
// offline-first write.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
)

// Timer statuses.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusPaused  = "paused"
)

// Recorder persists finished intervals and supplies the user's durations.
// *service.Service satisfies it.
type Recorder interface {
	RecordFocusSession(ctx context.Context, f models.FocusSession) (models.FocusSession, error)
	GetSettings(userID string) (models.Settings, error)
}

// State is a point-in-time snapshot of the timer.
type State struct {
	UserID             string `json:"user_id"`
	Mode               string `json:"mode"`
	Status             string `json:"status"`
	RemainingSeconds   int    `json:"remaining_seconds"`
	PlannedSeconds     int    `json:"planned_seconds"`
	CompletedFocus     int    `json:"completed_focus"`
	StartedAt          int64  `json:"started_at,omitempty"`
	SessionsBeforeLong int    `json:"sessions_before_long"`
}

// Timer is one user's pomodoro machine. Ticks are driven externally, either
// by Run or by a caller's own clock, which keeps the machine testable.
type Timer struct {
	mu       sync.Mutex
	recorder Recorder
	userID   string

	mode      string
	status    string
	remaining int
	planned   int
	startedAt int64

	completedFocus int

	now func() time.Time
}

// New creates an idle timer in focus mode for the given user.
func New(recorder Recorder, userID string) *Timer {
	return &Timer{
		recorder: recorder,
		userID:   userID,
		mode:     models.ModeFocus,
		status:   StatusIdle,
		now:      time.Now,
	}
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Timer) stateLocked() State {
	s := State{
		UserID:           t.userID,
		Mode:             t.mode,
		Status:           t.status,
		RemainingSeconds: t.remaining,
		PlannedSeconds:   t.planned,
		CompletedFocus:   t.completedFocus,
		StartedAt:        t.startedAt,
	}
	if settings, err := t.recorder.GetSettings(t.userID); err == nil {
		s.SessionsBeforeLong = settings.SessionsBeforeLong
	}
	return s
}

// Start begins the current interval, or resumes a paused one. Starting a
// running timer is a no-op.
func (t *Timer) Start(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case StatusRunning:
		return t.stateLocked(), nil
	case StatusPaused:
		t.status = StatusRunning
		return t.stateLocked(), nil
	}

	settings, err := t.recorder.GetSettings(t.userID)
	if err != nil {
		return State{}, err
	}
	t.planned = durationFor(t.mode, settings)
	t.remaining = t.planned
	t.startedAt = t.now().Unix()
	t.status = StatusRunning
	return t.stateLocked(), nil
}

// Pause freezes a running countdown.
func (t *Timer) Pause() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRunning {
		t.status = StatusPaused
	}
	return t.stateLocked()
}

// Tick advances a running countdown by one second. When the countdown
// reaches zero the interval is recorded and the timer advances to the next
// mode, idle.
func (t *Timer) Tick(ctx context.Context) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning {
		return t.stateLocked()
	}
	t.remaining--
	if t.remaining > 0 {
		return t.stateLocked()
	}
	t.finishLocked(ctx, true)
	return t.stateLocked()
}

// Skip abandons the current interval and advances to the next mode. A
// partially elapsed interval is still recorded, marked incomplete, so
// analytics count interrupted focus time.
func (t *Timer) Skip(ctx context.Context) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusIdle {
		t.advanceLocked()
		return t.stateLocked()
	}
	t.finishLocked(ctx, false)
	return t.stateLocked()
}

// Reset returns the timer to an idle focus interval and clears the
// completed-session count.
func (t *Timer) Reset() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = models.ModeFocus
	t.status = StatusIdle
	t.remaining = 0
	t.planned = 0
	t.startedAt = 0
	t.completedFocus = 0
	return t.stateLocked()
}

// Run drives the timer from a wall clock until the context is cancelled.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// finishLocked records the interval and advances the machine.
func (t *Timer) finishLocked(ctx context.Context, completed bool) {
	elapsed := t.planned - t.remaining
	if elapsed < 0 {
		elapsed = 0
	}
	session := models.FocusSession{
		UserID:         t.userID,
		Mode:           t.mode,
		PlannedSeconds: t.planned,
		ActualSeconds:  elapsed,
		StartedAt:      t.startedAt,
		EndedAt:        t.now().Unix(),
		Completed:      completed,
	}
	if _, err := t.recorder.RecordFocusSession(ctx, session); err != nil {
		logging.Warn("focus session not recorded", logging.Fields{"mode": t.mode, "error": err.Error()})
	}

	if t.mode == models.ModeFocus && completed {
		t.completedFocus++
	}
	t.advanceLocked()
}

// advanceLocked picks the next mode: focus alternates with breaks, and
// every Nth completed focus earns the long break.
func (t *Timer) advanceLocked() {
	if t.mode != models.ModeFocus {
		t.mode = models.ModeFocus
	} else {
		sessionsBeforeLong := 4
		if settings, err := t.recorder.GetSettings(t.userID); err == nil && settings.SessionsBeforeLong > 0 {
			sessionsBeforeLong = settings.SessionsBeforeLong
		}
		if t.completedFocus > 0 && t.completedFocus%sessionsBeforeLong == 0 {
			t.mode = models.ModeLongBreak
		} else {
			t.mode = models.ModeShortBreak
		}
	}
	t.status = StatusIdle
	t.remaining = 0
	t.planned = 0
	t.startedAt = 0
}

func durationFor(mode string, s models.Settings) int {
	switch mode {
	case models.ModeShortBreak:
		return s.ShortBreakSeconds
	case models.ModeLongBreak:
		return s.LongBreakSeconds
	default:
		return s.FocusSeconds
	}
}
