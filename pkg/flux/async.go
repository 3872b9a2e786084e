package flux

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncDispatcher runs tasks on a single worker goroutine with a bounded queue.
type AsyncDispatcher struct {
	queueSize    int
	panicHandler func(r any, stack []byte)

	mu      sync.RWMutex // guards queue against concurrent close
	queue   chan func()
	running atomic.Bool
	done    chan struct{}

	pending   atomic.Int64
	enqueued  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithQueueSize sets the task queue size. Default: 1024.
func WithQueueSize(size int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithPanicHandler sets the function called when a task panics.
// Default: ignore. Handler panics are already recovered by actions.
func WithPanicHandler(h func(r any, stack []byte)) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.panicHandler = h
	}
}

// NewAsyncDispatcher creates a stopped AsyncDispatcher. Call Start before use.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		queueSize:    1024,
		panicHandler: func(any, []byte) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start starts the worker goroutine.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}

	d.queue = make(chan func(), d.queueSize)
	d.done = make(chan struct{})
	d.running.Store(true)

	go d.worker(d.queue, d.done)
	return nil
}

// Stop stops accepting tasks and waits for queued tasks to finish, or for
// ctx to be done.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running.Store(false)
	close(d.queue)
	done := d.done
	d.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch implements Dispatcher. It returns ErrNotRunning before Start or
// after Stop, and ErrQueueFull when the queue is at capacity.
func (d *AsyncDispatcher) Dispatch(task func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running.Load() {
		return ErrNotRunning
	}

	d.pending.Add(1)
	wrapped := func() {
		defer d.pending.Add(-1)
		defer d.processed.Add(1)
		task()
	}
	select {
	case d.queue <- wrapped:
		d.enqueued.Add(1)
		return nil
	default:
		d.pending.Add(-1)
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Flush waits until every task dispatched so far, including tasks those
// tasks dispatch, has run.
func (d *AsyncDispatcher) Flush(ctx context.Context) error {
	for {
		if d.pending.Load() == 0 {
			return nil
		}

		marker := make(chan struct{})
		if err := d.enqueueMarker(ctx, func() { close(marker) }); err != nil {
			return err
		}

		select {
		case <-marker:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// enqueueMarker queues fn without counting it as pending.
// It must not block while holding mu.
func (d *AsyncDispatcher) enqueueMarker(ctx context.Context, fn func()) error {
	for {
		d.mu.RLock()
		if !d.running.Load() {
			d.mu.RUnlock()
			return ErrNotRunning
		}
		select {
		case d.queue <- fn:
			d.mu.RUnlock()
			return nil
		default:
		}
		d.mu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// AsyncStats reports dispatcher counters.
type AsyncStats struct {
	Enqueued  uint64
	Processed uint64
	Dropped   uint64
	Pending   int64
}

// Stats returns a snapshot of the dispatcher counters.
func (d *AsyncDispatcher) Stats() AsyncStats {
	return AsyncStats{
		Enqueued:  d.enqueued.Load(),
		Processed: d.processed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   d.pending.Load(),
	}
}

func (d *AsyncDispatcher) worker(queue <-chan func(), done chan<- struct{}) {
	defer close(done)
	for task := range queue {
		d.run(task)
	}
}

func (d *AsyncDispatcher) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			d.panicHandler(r, debug.Stack())
		}
	}()
	task()
}
