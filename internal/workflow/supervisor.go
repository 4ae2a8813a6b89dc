package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/metrics"
)

// Supervisor runs fire-and-forget and periodic background tasks with
// panic recovery and failure accounting. Detached tasks are never awaited
// by workflow callers; their failures surface in logs and metrics only.
type Supervisor struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	stopped bool
}

// NewSupervisor creates a supervisor. Shutdown cancels all running tasks.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Go runs fn in the background. The task receives the supervisor's
// context for cooperative cancellation; errors and panics are logged and
// counted, never propagated.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("background task rejected after shutdown", "task", name)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(name, fn)
	}()
}

// Every runs fn on a fixed interval until shutdown.
func (s *Supervisor) Every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("periodic task rejected after shutdown", "task", name)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.run(name, fn)
			}
		}
	}()
}

func (s *Supervisor) run(name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
			s.logger.Error("background task panicked",
				"task", name, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(s.ctx); err != nil {
		metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
		s.logger.Error("background task failed", "task", name, "error", err)
	}
}

// Shutdown cancels all tasks and waits for them to exit, up to timeout.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("background tasks did not stop within %s", timeout)
	}
}
