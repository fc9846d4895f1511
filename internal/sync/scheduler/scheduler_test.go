package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	syncpkg "github.com/studyflow/backend/internal/sync"
)

type countingEngine struct {
	triggers atomic.Int64
}

func (e *countingEngine) Trigger(ctx context.Context) { e.triggers.Add(1) }
func (e *countingEngine) Status() syncpkg.Status      { return syncpkg.Status{} }

func TestSchedulerTriggersPeriodically(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, Config{Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for engine.triggers.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 triggers, got %d", engine.triggers.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, Config{Interval: time.Hour})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	if !s.IsRunning() {
		t.Fatal("scheduler should be running")
	}
	s.Stop()
	if s.IsRunning() {
		t.Fatal("scheduler should have stopped")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(&countingEngine{}, Config{})
	s.Stop()
}

func TestContextCancelStopsLoop(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	time.Sleep(20 * time.Millisecond)

	before := engine.triggers.Load()
	time.Sleep(30 * time.Millisecond)
	if engine.triggers.Load() != before {
		t.Fatal("loop kept ticking after context cancellation")
	}
	s.Stop()
}
