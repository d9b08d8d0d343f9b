package executor

// Observer receives lifecycle notifications from a scheduler.
// TaskStarted is called from worker goroutines; the other methods are called
// from the scheduler goroutine. Implementations must be safe for concurrent use.
type Observer interface {
	TaskStarted(taskID string)
	TaskFinished(outcome Outcome)
	TaskTimedOut(taskID string)
	PoolResized(workers int)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(string)   {}
func (nopObserver) TaskFinished(Outcome) {}
func (nopObserver) TaskTimedOut(string)  {}
func (nopObserver) PoolResized(int)      {}
