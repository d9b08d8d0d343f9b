package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrSchedulerStarted is returned when Run is called more than once
	ErrSchedulerStarted = errors.New("scheduler already started")

	// ErrSchedulerClosed is returned by Submit once Run has returned
	ErrSchedulerClosed = errors.New("scheduler closed")
)

// State is the terminal condition reported by the scheduler.
type State int

const (
	// StateRunning means tasks are still outstanding
	StateRunning State = iota
	// StateFinished means every submitted task produced an outcome
	StateFinished
	// StateInterrupted means the run was cancelled before finishing
	StateInterrupted
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Config holds the knobs of a scheduler run.
type Config struct {
	// Workers is the initial pool size
	Workers int

	// WorkerTimeout is how long a task may run before it is killed; 0 disables
	WorkerTimeout time.Duration

	// PollInterval is the sleep between completion polls
	PollInterval time.Duration

	// ScanInterval is the cadence of the timeout supervisor
	ScanInterval time.Duration

	// ScaleAfter is the elapsed time after which ScaleIncrement workers are added
	ScaleAfter time.Duration

	// ScaleIncrement is the number of workers the dynamic scaler adds; 0 disables
	ScaleIncrement int

	// QueuePollTimeout bounds an idle worker's wait on the dispatch queue
	QueuePollTimeout time.Duration

	// StopTimeout bounds the join of worker units at shutdown
	StopTimeout time.Duration

	// CaptureCores enables a core snapshot before a timed out task is killed
	CaptureCores bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Workers:          1,
		WorkerTimeout:    15 * time.Minute,
		PollInterval:     time.Second,
		ScanInterval:     10 * time.Second,
		ScaleAfter:       5 * time.Minute,
		ScaleIncrement:   2,
		QueuePollTimeout: DefaultQueuePollTimeout,
		StopTimeout:      10 * time.Second,
		CaptureCores:     true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = def.ScanInterval
	}
	if c.QueuePollTimeout <= 0 {
		c.QueuePollTimeout = def.QueuePollTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	return c
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithObserver registers an observer for task and pool lifecycle events.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// Scheduler orchestrates one run: it owns the queues, the outstanding set,
// the pool, the timeout supervisor and the dynamic scaler. Submit, PollOnce
// and Run are meant to be called from a single goroutine.
type Scheduler struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer

	dispatch    *Queue[*Task]
	completions *Queue[Completion]
	set         *outstanding
	pool        *Pool
	supervisor  *supervisor
	scaler      *scaler

	// workCtx is handed to every target; it is cancelled only when the run
	// is interrupted
	workCtx    context.Context
	workCancel context.CancelFunc

	started atomic.Bool
	closed  atomic.Bool
	begin   time.Time

	// mu protects order, outcomes and stopErr
	mu       sync.Mutex
	order    []string
	outcomes map[string]Outcome
	stopErr  error
}

// NewScheduler creates a scheduler. Zero config fields take their defaults,
// except WorkerTimeout and ScaleIncrement where zero disables the feature.
func NewScheduler(cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	workCtx, workCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:         cfg,
		logger:      logger,
		observer:    nopObserver{},
		dispatch:    NewQueue[*Task](),
		completions: NewQueue[Completion](),
		set:         newOutstanding(),
		workCtx:     workCtx,
		workCancel:  workCancel,
		outcomes:    make(map[string]Outcome),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pool = NewPool(s.dispatch, s.completions, s.execute, cfg.QueuePollTimeout, logger)
	s.pool.onResize = s.observer.PoolResized
	s.supervisor = &supervisor{
		set:          s.set,
		timeout:      cfg.WorkerTimeout,
		captureCores: cfg.CaptureCores,
		observer:     s.observer,
		logger:       logger,
	}
	s.scaler = &scaler{
		pool:      s.pool,
		after:     cfg.ScaleAfter,
		increment: cfg.ScaleIncrement,
		logger:    logger,
	}
	return s
}

// Submit registers the task as outstanding and queues it for a worker.
func (s *Scheduler) Submit(task *Task) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	if err := task.validate(); err != nil {
		return err
	}
	if !s.set.insert(task.ID) {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	s.mu.Lock()
	s.order = append(s.order, task.ID)
	s.mu.Unlock()

	s.dispatch.Push(task)
	s.logger.Debug("task submitted", "task", task.ID, "outstanding", s.set.len())
	return nil
}

// PollOnce drains the completion queue without blocking. It fires the task
// callback for every outcome that is not an execution error and removes each
// drained task from the outstanding set. It returns StateFinished once
// nothing is outstanding.
func (s *Scheduler) PollOnce() State {
	for {
		c, ok := s.completions.TryPop()
		if !ok {
			break
		}
		s.observe(c)
	}

	if s.set.len() == 0 {
		return StateFinished
	}
	return StateRunning
}

// observe turns a completion into the task's outcome.
func (s *Scheduler) observe(c Completion) {
	e, ok := s.set.remove(c.Task.ID)
	if !ok {
		s.logger.Error("completion for unknown task", "task", c.Task.ID)
		return
	}

	o := Outcome{
		TaskID: c.Task.ID,
		Status: c.Status,
		Start:  e.start,
		End:    c.End,
		Err:    c.Err,
	}
	if e.timedOut {
		o.TimedOut = true
		o.End = e.end
	}
	if o.Start.IsZero() {
		o.Start = o.End
	}

	s.mu.Lock()
	s.outcomes[o.TaskID] = o
	s.mu.Unlock()
	s.observer.TaskFinished(o)

	if o.Err != nil {
		s.logger.Warn("task execution error", "task", o.TaskID, "error", o.Err)
		return
	}

	s.logger.Debug("task finished",
		"task", o.TaskID,
		"status", o.Status.String(),
		"timed_out", o.TimedOut,
		"duration", o.Duration())

	if c.Task.Callback != nil {
		c.Task.Callback(c.Task, o)
	}
}

// execute runs on a worker unit. Faults, including panics, become an error
// completion so a failing task never takes the worker down.
func (s *Scheduler) execute(task *Task) (c Completion) {
	c.Task = task
	s.set.markStarted(task.ID, time.Now())
	s.observer.TaskStarted(task.ID)

	defer func() {
		if r := recover(); r != nil {
			c.Err = &TaskError{TaskID: task.ID, Err: fmt.Errorf("panic: %v", r)}
		}
		c.End = time.Now()
		s.set.markEnded(task.ID, c.End)
	}()

	attach := func(h Handle) {
		if s.set.attach(task.ID, h) {
			// Already expired before the process existed.
			s.supervisor.terminate(s.workCtx, task.ID, h)
		}
	}

	status, err := task.Target(s.workCtx, task.Args, attach)
	c.Status = status
	if err != nil {
		c.Err = &TaskError{TaskID: task.ID, Err: err}
	}
	return c
}

// Run drives the run to completion. Every PollInterval it gives the dynamic
// scaler a chance to fire, polls completions and, every ScanInterval, lets
// the timeout supervisor scan in-flight tasks. It returns StateFinished when
// nothing is outstanding or StateInterrupted when ctx is cancelled first.
// No task failure is reported as an error.
func (s *Scheduler) Run(ctx context.Context) (State, error) {
	if !s.started.CompareAndSwap(false, true) {
		return StateRunning, ErrSchedulerStarted
	}
	defer s.closed.Store(true)

	s.begin = time.Now()
	if _, err := s.pool.Grow(s.cfg.Workers); err != nil {
		return StateRunning, fmt.Errorf("starting workers: %w", err)
	}

	s.logger.Info("starting run",
		"workers", s.cfg.Workers,
		"tasks", s.set.len(),
		"worker_timeout", s.cfg.WorkerTimeout)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	lastScan := s.begin
	state := s.PollOnce()
	for state != StateFinished {
		select {
		case <-ctx.Done():
			s.logger.Warn("run interrupted", "outstanding", s.set.len())
			s.terminateInFlight()
			s.shutdown()
			return StateInterrupted, nil
		case now := <-ticker.C:
			s.scaler.maybeGrow(now.Sub(s.begin))
			state = s.PollOnce()
			if state != StateFinished && now.Sub(lastScan) >= s.cfg.ScanInterval {
				s.supervisor.scan(s.workCtx, now)
				lastScan = now
			}
		}
	}

	s.shutdown()
	s.logger.Info("run finished", "tasks", len(s.Outcomes()), "duration", s.Elapsed())
	return StateFinished, nil
}

// terminateInFlight kills every task process still running so nothing
// outlives an interrupted run.
func (s *Scheduler) terminateInFlight() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout)
	defer cancel()

	for id, h := range s.set.inFlight() {
		if err := h.Kill(ctx); err != nil {
			s.logger.Debug("kill on interrupt failed", "task", id, "error", err)
		}
	}
	s.workCancel()
}

func (s *Scheduler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout)
	defer cancel()

	if err := s.pool.StopAll(ctx); err != nil {
		s.logger.Warn("workers left running in background", "error", err)
		s.mu.Lock()
		s.stopErr = err
		s.mu.Unlock()
	}
}

// StopErr returns the ErrStopTimeout raised when Run could not stop every
// worker, or nil. The run's outcomes are still valid when it is set.
func (s *Scheduler) StopErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

// Outcomes returns the outcomes observed so far in submission order.
func (s *Scheduler) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Outcome, 0, len(s.outcomes))
	for _, id := range s.order {
		if o, ok := s.outcomes[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome of one task, if it has been observed.
func (s *Scheduler) Outcome(id string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[id]
	return o, ok
}

// Outstanding returns the number of tasks without an observed outcome.
func (s *Scheduler) Outstanding() int {
	return s.set.len()
}

// PoolSize returns the number of worker units started so far.
func (s *Scheduler) PoolSize() int {
	return s.pool.Size()
}

// Elapsed returns the time since Run started.
func (s *Scheduler) Elapsed() time.Duration {
	if s.begin.IsZero() {
		return 0
	}
	return time.Since(s.begin)
}
