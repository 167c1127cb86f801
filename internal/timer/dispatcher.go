package timer

import (
	"context"
	"sync/atomic"
)

// Dispatcher runs callbacks on behalf of a timer. It decides which
// goroutine a tick handler runs on.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs callbacks immediately on the timer goroutine.
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// ChannelDispatcher queues callbacks for a main loop to run. When the queue
// is full further callbacks are dropped, so a slow loop sees coalesced
// ticks rather than a backlog.
type ChannelDispatcher struct {
	queue   chan func()
	dropped atomic.Int64
}

// NewChannelDispatcher creates a dispatcher queueing up to size callbacks.
func NewChannelDispatcher(size int) *ChannelDispatcher {
	if size < 1 {
		size = 1
	}
	return &ChannelDispatcher{queue: make(chan func(), size)}
}

// Dispatch queues fn.
func (d *ChannelDispatcher) Dispatch(fn func()) {
	select {
	case d.queue <- fn:
	default:
		d.dropped.Add(1)
	}
}

// C returns the queue. Receivers must call what they receive.
func (d *ChannelDispatcher) C() <-chan func() {
	return d.queue
}

// RunPending runs every queued callback without blocking and returns how
// many ran.
func (d *ChannelDispatcher) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-d.queue:
			fn()
			n++
		default:
			return n
		}
	}
}

// Run runs queued callbacks until ctx is done.
func (d *ChannelDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-d.queue:
			fn()
		}
	}
}

// Dropped returns the number of callbacks dropped because the queue was full.
func (d *ChannelDispatcher) Dropped() int64 {
	return d.dropped.Load()
}
