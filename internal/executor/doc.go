// Package executor is the concurrency engine that drives external test
// executables with bounded parallelism.
//
// A Scheduler owns two FIFO queues, an outstanding set and a Pool of worker
// units. Tasks are submitted up front, workers drain the dispatch queue in
// parallel and publish completions, and the scheduler's single-threaded loop
// polls those completions, fires per-task callbacks and declares the run
// finished once nothing is outstanding.
//
// # Basic Usage
//
//	sched := executor.NewScheduler(executor.Config{
//	    Workers:       4,
//	    WorkerTimeout: 15 * time.Minute,
//	}, logger)
//
//	for _, bin := range binaries {
//	    sched.Submit(&executor.Task{
//	        ID:     bin,
//	        Target: runner.Target(),
//	        Args:   []string{bin},
//	    })
//	}
//
//	state, err := sched.Run(ctx)
//	outcomes := sched.Outcomes()
//
// # Timeouts
//
// Every ScanInterval the timeout supervisor looks at tasks that have started
// but not ended. A task older than WorkerTimeout is marked timed out and the
// process behind its Handle is snapshotted and killed. The task still leaves
// the outstanding set only when its worker publishes the completion, which
// keeps removal on the scheduler goroutine.
//
// Targets register the Handle of the process they spawn through the
// AttachFunc they receive. Processes are never looked up by name.
//
// # Dynamic Scaling
//
// Once the run has been active for ScaleAfter, ScaleIncrement workers are
// added to the pool. This happens at most once per run.
//
// # Cancellation
//
// Cancelling the context passed to Run ends the loop with StateInterrupted.
// In-flight processes are killed and the pool is stopped with a bounded join;
// workers still blocked in an external call are left to finish in the
// background.
//
// # Error Handling
//
// A target that returns an error or panics produces an Outcome with Err set.
// Its callback is not invoked, but the task is still removed from the
// outstanding set so the run can finish. No task failure ever aborts the run.
package executor
