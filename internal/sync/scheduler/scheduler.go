// Package scheduler provides the periodic background sync trigger.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/studyflow/backend/internal/logging"
	syncpkg "github.com/studyflow/backend/internal/sync"
)

// Engine is the trigger surface the scheduler drives.
type Engine interface {
	Trigger(ctx context.Context)
	Status() syncpkg.Status
}

// Config holds scheduler configuration.
type Config struct {
	// Interval between periodic sync triggers. Zero defaults to 5 minutes.
	Interval time.Duration
}

// Scheduler fires periodic sync triggers. The engine itself enforces
// single-flight and offline handling, so ticks are fire-and-forget.
type Scheduler struct {
	engine   Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler.
func New(engine Engine, cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{engine: engine, interval: interval}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("background sync scheduler started", logging.Fields{
		"interval_seconds": s.interval.Seconds(),
	})
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("background sync scheduler stopped")
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.engine.Trigger(ctx)
		}
	}
}
