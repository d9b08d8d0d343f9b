package executor

import (
	"context"
	"log/slog"
	"time"
)

// ExecFunc runs one task to completion on a worker unit.
type ExecFunc func(task *Task) Completion

// workerUnit repeatedly pulls a task from the dispatch queue, executes it and
// publishes the completion. It runs until its stop signal is set.
type workerUnit struct {
	id          int
	dispatch    *Queue[*Task]
	completions *Queue[Completion]
	exec        ExecFunc
	pollTimeout time.Duration
	logger      *slog.Logger

	// ctx is cancelled to signal stop
	ctx    context.Context
	cancel context.CancelFunc

	// done is closed when the loop returns
	done chan struct{}
}

func (w *workerUnit) stop() {
	w.cancel()
}

func (w *workerUnit) loop() {
	defer close(w.done)

	w.logger.Debug("worker started", "worker_id", w.id)

	for {
		if w.ctx.Err() != nil {
			w.logger.Debug("worker stopping", "worker_id", w.id)
			return
		}

		task, ok := w.dispatch.Pop(w.ctx, w.pollTimeout)
		if !ok {
			continue
		}

		// Stop arrived while we were waiting: hand the task back untouched.
		if w.ctx.Err() != nil {
			w.dispatch.Push(task)
			w.logger.Debug("worker stopping, task returned to queue", "worker_id", w.id, "task", task.ID)
			return
		}

		w.completions.Push(w.exec(task))
	}
}
