package executor

import (
	"log/slog"
	"time"
)

// scaler adds workers once, after the run has been active for a while, to
// speed up the long tail of slow tasks. It never shrinks the pool.
type scaler struct {
	pool      *Pool
	after     time.Duration
	increment int
	fired     bool
	logger    *slog.Logger
}

// maybeGrow grows the pool the first time elapsed reaches the trigger.
// It reports whether it grew the pool on this call.
func (s *scaler) maybeGrow(elapsed time.Duration) bool {
	if s.fired || s.increment <= 0 || elapsed < s.after {
		return false
	}
	s.fired = true

	size, err := s.pool.Grow(s.increment)
	if err != nil {
		s.logger.Warn("could not add workers", "error", err)
		return false
	}
	s.logger.Info("added workers for the remaining tasks",
		"added", s.increment,
		"workers", size,
		"elapsed", elapsed.Round(time.Millisecond))
	return true
}
