package executor

import (
	"sort"
	"sync"
	"time"
)

// entry is the in-flight state of one submitted task.
type entry struct {
	start    time.Time
	end      time.Time
	timedOut bool
	handle   Handle
}

func (e *entry) started() bool { return !e.start.IsZero() }
func (e *entry) ended() bool   { return !e.end.IsZero() }

// expired describes a task the supervisor has just marked as timed out.
type expired struct {
	id      string
	handle  Handle
	elapsed time.Duration
}

// outstanding is the set of submitted tasks whose outcome has not yet been
// observed by the scheduler. Removal is the single point that ends a task's
// lifecycle and only the scheduler performs it.
type outstanding struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newOutstanding() *outstanding {
	return &outstanding{entries: make(map[string]*entry)}
}

func (o *outstanding) insert(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[id]; ok {
		return false
	}
	o.entries[id] = &entry{}
	return true
}

func (o *outstanding) markStarted(id string, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[id]; ok && !e.started() {
		e.start = now
	}
}

// attach stores the process handle of a task. It reports true when the task
// had already timed out, so the caller must terminate the process itself.
func (o *outstanding) attach(id string, h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok || e.handle != nil {
		return false
	}
	e.handle = h
	return e.timedOut
}

// markEnded records a normal completion. It reports false when the
// supervisor already ended the task.
func (o *outstanding) markEnded(id string, now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok || e.ended() {
		return false
	}
	e.end = now
	return true
}

// expireOverdue marks every started, unended task older than timeout as timed
// out at now. Tasks already ended are skipped, so repeated calls are no-ops.
func (o *outstanding) expireOverdue(now time.Time, timeout time.Duration) []expired {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []expired
	for id, e := range o.entries {
		if !e.started() || e.ended() {
			continue
		}
		elapsed := now.Sub(e.start)
		if elapsed <= timeout {
			continue
		}
		e.end = now
		e.timedOut = true
		out = append(out, expired{id: id, handle: e.handle, elapsed: elapsed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// inFlight returns the handles of started tasks that have not ended.
func (o *outstanding) inFlight() map[string]Handle {
	o.mu.Lock()
	defer o.mu.Unlock()

	handles := make(map[string]Handle)
	for id, e := range o.entries {
		if e.started() && !e.ended() && e.handle != nil {
			handles[id] = e.handle
		}
	}
	return handles
}

func (o *outstanding) remove(id string) (entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok {
		return entry{}, false
	}
	delete(o.entries, id)
	return *e, true
}

func (o *outstanding) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
