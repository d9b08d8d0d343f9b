package executor

import (
	"context"
	"log/slog"
	"time"
)

// supervisor detects tasks that exceeded the worker timeout and terminates
// their external process. It runs on the scheduler goroutine.
type supervisor struct {
	set          *outstanding
	timeout      time.Duration
	captureCores bool
	observer     Observer
	logger       *slog.Logger
}

// scan expires every overdue task and returns their IDs. Marking happens
// before, and independently of, termination: the task still leaves the
// outstanding set only when its worker publishes the completion.
func (s *supervisor) scan(ctx context.Context, now time.Time) []string {
	if s.timeout <= 0 {
		return nil
	}

	overdue := s.set.expireOverdue(now, s.timeout)
	ids := make([]string, 0, len(overdue))
	for _, e := range overdue {
		ids = append(ids, e.id)
		s.logger.Warn("task exceeded worker timeout, killing",
			"task", e.id,
			"elapsed", e.elapsed.Round(time.Millisecond),
			"timeout", s.timeout)
		s.observer.TaskTimedOut(e.id)
		s.terminate(ctx, e.id, e.handle)
	}
	return ids
}

// terminate snapshots then kills the process behind h. Failures are logged
// only; the bookkeeping has already been updated.
func (s *supervisor) terminate(ctx context.Context, id string, h Handle) {
	if h == nil {
		s.logger.Warn("no process handle attached, cannot kill", "task", id)
		return
	}

	if s.captureCores {
		if err := h.Snapshot(ctx); err != nil {
			s.logger.Warn("core snapshot failed", "task", id, "error", err)
		}
	}

	if err := h.Kill(ctx); err != nil {
		s.logger.Warn("kill failed", "task", id, "error", err)
		return
	}
	s.logger.Info("killed timed out task", "task", id)
}
