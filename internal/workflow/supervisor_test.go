package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisorRunsTask(t *testing.T) {
	s := NewSupervisor(discardLogger())
	var ran atomic.Int32

	s.Go("one_shot", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	if err := s.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if ran.Load() != 1 {
		t.Errorf("expected task to run once, got %d", ran.Load())
	}
}

func TestSupervisorRecoversPanic(t *testing.T) {
	s := NewSupervisor(discardLogger())
	var after atomic.Int32

	s.Go("panics", func(ctx context.Context) error {
		panic("boom")
	})
	s.Go("survives", func(ctx context.Context) error {
		after.Add(1)
		return nil
	})

	if err := s.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("a panicking task must not wedge shutdown: %v", err)
	}
	if after.Load() != 1 {
		t.Error("sibling task must still run after a panic")
	}
}

func TestSupervisorTaskErrorNotPropagated(t *testing.T) {
	s := NewSupervisor(discardLogger())

	s.Go("fails", func(ctx context.Context) error {
		return errors.New("transient")
	})

	if err := s.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("task errors must not surface through shutdown: %v", err)
	}
}

func TestSupervisorRejectsAfterShutdown(t *testing.T) {
	s := NewSupervisor(discardLogger())
	if err := s.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	var ran atomic.Int32
	s.Go("late", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	if ran.Load() != 0 {
		t.Error("task submitted after shutdown must not run")
	}
}

func TestSupervisorEvery(t *testing.T) {
	s := NewSupervisor(discardLogger())
	var ticks atomic.Int32

	s.Every("ticker", 20*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if ticks.Load() < 2 {
		t.Errorf("expected at least 2 ticks, got %d", ticks.Load())
	}
}

func TestSupervisorCancellationReachesTask(t *testing.T) {
	s := NewSupervisor(discardLogger())
	canceled := make(chan struct{})

	s.Go("waits", func(ctx context.Context) error {
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})

	if err := s.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case <-canceled:
	default:
		t.Error("expected the task to observe cancellation")
	}
}
