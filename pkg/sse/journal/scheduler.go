package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler prunes a Store on a cron schedule.
type Scheduler struct {
	store     Store
	schedule  string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler that removes entries older than
// retention from store. schedule uses standard five-field cron syntax:
//
//   - "*/5 * * * *" - every five minutes
//   - "0 * * * *"   - hourly
//   - "@every 30s"  - fixed interval
func NewScheduler(store Store, schedule string, retention time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "sse.journal.scheduler"),
	}
}

// Start schedules pruning until ctx is done or Stop is called. An empty
// schedule disables pruning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("journal prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("journal scheduler started",
		"schedule", s.schedule,
		"retention", s.retention.String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one pruning cycle and returns the number of entries
// removed.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("journal pruning failed", "error", err)
		return 0
	}
	if deleted > 0 {
		s.logger.Info("journal pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("journal pruning completed, nothing to delete")
	}
	return deleted
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("journal scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
