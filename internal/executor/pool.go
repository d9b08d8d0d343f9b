package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrPoolStopped is returned when the pool has already been stopped
	ErrPoolStopped = errors.New("pool already stopped")

	// ErrStopTimeout is returned when worker units did not exit before the
	// stop deadline, usually because they are blocked in an external process
	ErrStopTimeout = errors.New("timed out waiting for workers to stop")
)

// DefaultQueuePollTimeout bounds how long an idle worker waits on the
// dispatch queue before looking at its stop signal again.
const DefaultQueuePollTimeout = 5 * time.Second

// Pool owns the set of live worker units. Units are only ever added while the
// pool runs and are all stopped together.
type Pool struct {
	// dispatch feeds tasks to the workers
	dispatch *Queue[*Task]

	// completions receives what the workers produced
	completions *Queue[Completion]

	// exec runs a single task
	exec ExecFunc

	// pollTimeout is the bounded wait of an idle worker
	pollTimeout time.Duration

	// logger for structured logging
	logger *slog.Logger

	// onResize is told the new size after every Grow
	onResize func(size int)

	// mu protects units, nextID and stopped
	mu      sync.Mutex
	units   []*workerUnit
	nextID  int
	stopped bool
}

// NewPool creates a pool with no workers; call Grow to start some.
// pollTimeout <= 0 defaults to DefaultQueuePollTimeout.
func NewPool(dispatch *Queue[*Task], completions *Queue[Completion], exec ExecFunc, pollTimeout time.Duration, logger *slog.Logger) *Pool {
	if pollTimeout <= 0 {
		pollTimeout = DefaultQueuePollTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		dispatch:    dispatch,
		completions: completions,
		exec:        exec,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Grow spawns n more worker units bound to the pool's queues and returns the
// new pool size. It is safe to call while other units are running.
func (p *Pool) Grow(n int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return len(p.units), ErrPoolStopped
	}

	for i := 0; i < n; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		w := &workerUnit{
			id:          p.nextID,
			dispatch:    p.dispatch,
			completions: p.completions,
			exec:        p.exec,
			pollTimeout: p.pollTimeout,
			logger:      p.logger,
			ctx:         ctx,
			cancel:      cancel,
			done:        make(chan struct{}),
		}
		p.nextID++
		p.units = append(p.units, w)
		go w.loop()
	}

	size := len(p.units)
	if n > 0 {
		p.logger.Debug("worker pool grown", "added", n, "workers", size)
		if p.onResize != nil {
			p.onResize(size)
		}
	}
	return size, nil
}

// StopAll signals every worker unit to stop and waits for each to exit.
// The wait is bounded by ctx: a unit blocked in a long external call may
// outlive StopAll, in which case ErrStopTimeout is returned and the unit is
// left to finish in the background.
func (p *Pool) StopAll(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.stopped = true
	units := make([]*workerUnit, len(p.units))
	copy(units, p.units)
	p.mu.Unlock()

	p.logger.Debug("stopping worker pool", "workers", len(units))

	for _, w := range units {
		w.stop()
	}

	pending := 0
	for _, w := range units {
		select {
		case <-w.done:
			continue
		default:
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			pending++
		}
	}

	if pending > 0 {
		return fmt.Errorf("%w: %d of %d still running: %w", ErrStopTimeout, pending, len(units), ctx.Err())
	}

	p.logger.Debug("worker pool stopped")
	return nil
}

// Size returns the number of worker units ever started.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.units)
}

// IsStopped returns true once StopAll has been called
func (p *Pool) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
