package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a fast-ticking configuration with timeouts and scaling off.
func testConfig(workers int) Config {
	return Config{
		Workers:          workers,
		PollInterval:     5 * time.Millisecond,
		ScanInterval:     5 * time.Millisecond,
		QueuePollTimeout: 10 * time.Millisecond,
		StopTimeout:      2 * time.Second,
	}
}

// fakeHandle stands in for a spawned process. Kill unblocks the target.
type fakeHandle struct {
	killed    chan struct{}
	once      sync.Once
	kills     atomic.Int32
	snapshots atomic.Int32
	killErr   error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{killed: make(chan struct{})}
}

func (h *fakeHandle) Snapshot(context.Context) error {
	h.snapshots.Add(1)
	return nil
}

func (h *fakeHandle) Kill(context.Context) error {
	h.kills.Add(1)
	h.once.Do(func() { close(h.killed) })
	return h.killErr
}

// handleRecorder keeps the handle each task attached.
type handleRecorder struct {
	mu      sync.Mutex
	handles map[string]*fakeHandle
}

func newHandleRecorder() *handleRecorder {
	return &handleRecorder{handles: make(map[string]*fakeHandle)}
}

func (r *handleRecorder) get(id string) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

// sleepTarget simulates a process that runs for d unless it is killed first.
func (r *handleRecorder) sleepTarget(d time.Duration) Target {
	return func(ctx context.Context, args []string, attach AttachFunc) (Status, error) {
		h := newFakeHandle()
		if r != nil && len(args) > 0 {
			r.mu.Lock()
			r.handles[args[0]] = h
			r.mu.Unlock()
		}
		attach(h)

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return ExitStatus(0), nil
		case <-h.killed:
			return SignalStatus(9, false), nil
		case <-ctx.Done():
			return SignalStatus(9, false), nil
		}
	}
}

func sleepTasks(r *handleRecorder, n int, d time.Duration) []*Task {
	tasks := make([]*Task, n)
	for i := range tasks {
		id := fmt.Sprintf("task-%d", i)
		tasks[i] = &Task{ID: id, Args: []string{id}, Target: r.sleepTarget(d)}
	}
	return tasks
}
