// Package scheduler drives the periodic retry sweep for pending events.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Processor is the interface for the pending-event sweep.
type Processor interface {
	ProcessPending(ctx context.Context) error
}

// Scheduler periodically re-attempts delivery of pending events.
type Scheduler struct {
	proc   Processor
	online func() bool
	log    *slog.Logger
	tick   time.Duration
}

// New creates a Scheduler with the default 15-minute sweep interval.
func New(proc Processor, log *slog.Logger) *Scheduler {
	return &Scheduler{
		proc: proc,
		log:  log,
		tick: 15 * time.Minute,
	}
}

// SetTickInterval overrides the default sweep interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetOnlineCheck installs a connectivity gate; sweeps are skipped while
// it reports false. A nil check means always online.
func (s *Scheduler) SetOnlineCheck(fn func() bool) {
	s.online = fn
}

// Run starts the sweep loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.online != nil && !s.online() {
		s.log.Debug("skipping sweep, offline")
		return
	}
	if err := s.proc.ProcessPending(ctx); err != nil {
		s.log.Error("process pending", "error", err)
	}
}
