package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
	"github.com/studyflow/backend/internal/service"
)

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SyncStatus returns the engine snapshot backing the sync indicator.
func (s *Server) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// SyncTrigger fires a background sync pass and returns immediately.
func (s *Server) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	s.engine.Trigger(r.Context())
	writeJSON(w, http.StatusAccepted, s.engine.Status())
}

// SyncResume clears an auth pause after the user re-authenticates.
func (s *Server) SyncResume(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume(r.Context())
	writeJSON(w, http.StatusAccepted, s.engine.Status())
}

func (s *Server) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.svc.GetAssignments(chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var in models.Assignment
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	in.UserID = chi.URLParam(r, "userID")
	created, err := s.svc.SaveAssignment(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) PatchAssignment(w http.ResponseWriter, r *http.Request) {
	var patch service.AssignmentPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.UpdateAssignment(r.Context(), userID, id, patch); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.DeleteAssignment(r.Context(), userID, id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.svc.GetHabits(chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (s *Server) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var in models.Habit
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	in.UserID = chi.URLParam(r, "userID")
	created, err := s.svc.SaveHabit(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) PatchHabit(w http.ResponseWriter, r *http.Request) {
	var patch service.HabitPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.UpdateHabit(r.Context(), userID, id, patch); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.DeleteHabit(r.Context(), userID, id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkHabitRequest struct {
	Day string `json:"day"`
}

// CheckHabit toggles a habit's completion for one day.
func (s *Server) CheckHabit(w http.ResponseWriter, r *http.Request) {
	var req checkHabitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Day == "" {
		req.Day = time.Now().UTC().Format("2006-01-02")
	}
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.CheckHabit(r.Context(), userID, id, req.Day); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "day": req.Day})
}

func (s *Server) HabitStreak(w http.ResponseWriter, r *http.Request) {
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	streak, err := s.svc.HabitStreak(userID, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"streak": streak})
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.GetSettings(chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	var in models.Settings
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	in.UserID = chi.URLParam(r, "userID")
	saved, err := s.svc.SaveSettings(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) ListFocusSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.GetFocusSessions(chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) CreateFocusSession(w http.ResponseWriter, r *http.Request) {
	var in models.FocusSession
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	in.UserID = chi.URLParam(r, "userID")
	created, err := s.svc.RecordFocusSession(r.Context(), in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) DeleteFocusSession(w http.ResponseWriter, r *http.Request) {
	userID, id := chi.URLParam(r, "userID"), chi.URLParam(r, "id")
	if err := s.svc.DeleteFocusSession(r.Context(), userID, id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FocusStats aggregates focus sessions since an optional unix-seconds
// cutoff; ?days=N is the friendlier alternative the UI uses.
func (s *Server) FocusStats(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be unix seconds", nil)
			return
		}
		since = time.Unix(ts, 0)
	} else if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer", nil)
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}

	stats, err := s.svc.GetFocusStats(chi.URLParam(r, "userID"), since)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) TimerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timerFor(chi.URLParam(r, "userID")).State())
}

func (s *Server) TimerStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.timerFor(chi.URLParam(r, "userID")).Start(r.Context())
	if err != nil {
		logging.Error("timer start failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) TimerPause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timerFor(chi.URLParam(r, "userID")).Pause())
}

func (s *Server) TimerSkip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timerFor(chi.URLParam(r, "userID")).Skip(r.Context()))
}

func (s *Server) TimerReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timerFor(chi.URLParam(r, "userID")).Reset())
}
