package flux

import (
	"sync"
)

// Dispatcher serializes action deliveries. Tasks must run one at a time and
// in the order they were dispatched.
type Dispatcher interface {
	Dispatch(task func()) error
}

// SyncDispatcher runs tasks on the dispatching goroutine. A Dispatch made
// while another task is running (from a handler, or from another goroutine)
// is queued and run by the goroutine that is already draining, after the
// current task returns.
type SyncDispatcher struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// NewSyncDispatcher creates a SyncDispatcher.
func NewSyncDispatcher() *SyncDispatcher {
	return &SyncDispatcher{}
}

// Dispatch implements Dispatcher. It never fails.
func (d *SyncDispatcher) Dispatch(task func()) error {
	d.mu.Lock()
	d.queue = append(d.queue, task)
	if d.draining {
		d.mu.Unlock()
		return nil
	}
	d.draining = true
	d.mu.Unlock()

	d.drain()
	return nil
}

// Pending returns the number of queued tasks.
func (d *SyncDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *SyncDispatcher) drain() {
	defer func() {
		// A panicking task must not leave the dispatcher stuck in draining
		if r := recover(); r != nil {
			d.mu.Lock()
			d.draining = false
			d.mu.Unlock()
			panic(r)
		}
	}()

	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		task()
	}
}
