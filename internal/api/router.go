// Package api exposes the local data service over HTTP for the web UI.
// Every endpoint answers from the local store; nothing here waits on the
// network, which is what keeps the UI responsive offline.
package api

import (
	"context"
	"net/http"
	gosync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/studyflow/backend/internal/service"
	syncengine "github.com/studyflow/backend/internal/sync"
	"github.com/studyflow/backend/internal/timer"
)

// SyncEngine is the engine surface the handlers need.
type SyncEngine interface {
	Status() syncengine.Status
	Trigger(ctx context.Context)
	Resume(ctx context.Context)
}

// Server holds the handler dependencies.
type Server struct {
	svc    *service.Service
	engine SyncEngine

	mu     gosync.Mutex
	timers map[string]*timer.Timer
}

// NewServer creates a Server around the façade and the sync engine.
func NewServer(svc *service.Service, engine SyncEngine) *Server {
	return &Server{svc: svc, engine: engine, timers: make(map[string]*timer.Timer)}
}

// timerFor returns the user's pomodoro timer, creating it on first use.
func (s *Server) timerFor(userID string) *timer.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[userID]
	if !ok {
		t = timer.New(s.svc, userID)
		s.timers[userID] = t
	}
	return t
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.SyncStatus)
			r.Post("/trigger", s.SyncTrigger)
			r.Post("/resume", s.SyncResume)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", s.ListAssignments)
				r.Post("/", s.CreateAssignment)
				r.Patch("/{id}", s.PatchAssignment)
				r.Delete("/{id}", s.DeleteAssignment)
			})

			r.Route("/habits", func(r chi.Router) {
				r.Get("/", s.ListHabits)
				r.Post("/", s.CreateHabit)
				r.Patch("/{id}", s.PatchHabit)
				r.Delete("/{id}", s.DeleteHabit)
				r.Post("/{id}/check", s.CheckHabit)
				r.Get("/{id}/streak", s.HabitStreak)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", s.GetSettings)
				r.Put("/", s.PutSettings)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.ListFocusSessions)
				r.Post("/", s.CreateFocusSession)
				r.Delete("/{id}", s.DeleteFocusSession)
			})

			r.Get("/stats/focus", s.FocusStats)

			r.Route("/timer", func(r chi.Router) {
				r.Get("/", s.TimerState)
				r.Post("/start", s.TimerStart)
				r.Post("/pause", s.TimerPause)
				r.Post("/skip", s.TimerSkip)
				r.Post("/reset", s.TimerReset)
			})
		})
	})

	return r
}
