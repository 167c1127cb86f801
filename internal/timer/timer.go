// Package timer provides a dispatcher timer: a repeating timer whose tick
// handlers run through a Dispatcher, typically the application's main loop.
package timer

import (
	"errors"
	"sync"
	"time"

	"github.com/dshills/appshim/internal/logging"
)

// MinInterval is the shortest interval a timer ticks at. Shorter intervals,
// including zero, are raised to it.
const MinInterval = time.Millisecond

// ErrNegativeInterval is returned by SetInterval for negative durations.
var ErrNegativeInterval = errors.New("timer: negative interval")

// TickHandler is called on each tick with the tick time.
type TickHandler func(t time.Time)

// DispatcherTimer is a repeating timer. It is safe for concurrent use.
//
// A tick that is already being dispatched when Stop is called may still
// reach the handlers; no tick is dispatched after Stop returns.
type DispatcherTimer struct {
	dispatcher Dispatcher
	logger     *logging.Logger

	mu         sync.Mutex
	interval   time.Duration
	handlers   []TickHandler
	stop       chan struct{}
	generation uint64
}

// Option configures a DispatcherTimer.
type Option func(*DispatcherTimer)

// WithDispatcher sets the dispatcher. The default is Inline.
func WithDispatcher(d Dispatcher) Option {
	return func(t *DispatcherTimer) {
		if d != nil {
			t.dispatcher = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *DispatcherTimer) {
		t.logger = logging.OrNull(l)
	}
}

// New creates a stopped timer with a zero interval.
func New(opts ...Option) *DispatcherTimer {
	t := &DispatcherTimer{
		dispatcher: Inline,
		logger:     logging.NullLogger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the tick interval.
func (t *DispatcherTimer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval changes the tick interval. A running timer restarts with the
// new interval.
func (t *DispatcherTimer) SetInterval(d time.Duration) error {
	if d < 0 {
		return ErrNegativeInterval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = d
	if t.stop != nil {
		t.stopLocked()
		t.startLocked()
	}
	return nil
}

// IsEnabled reports whether the timer is running.
func (t *DispatcherTimer) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// OnTick registers a tick handler.
func (t *DispatcherTimer) OnTick(handler TickHandler) {
	if handler == nil {
		return
	}
	t.mu.Lock()
	t.handlers = append(t.handlers, handler)
	t.mu.Unlock()
}

// Start starts the timer. Starting a running timer restarts its interval.
func (t *DispatcherTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.stopLocked()
	}
	t.startLocked()
}

// Stop stops the timer. Stopping a stopped timer does nothing. Stop may be
// called from a tick handler.
func (t *DispatcherTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *DispatcherTimer) startLocked() {
	interval := t.interval
	if interval < MinInterval {
		interval = MinInterval
	}
	t.generation++
	t.stop = make(chan struct{})
	go t.loop(t.generation, interval, t.stop)
	t.logger.Debug("timer started with interval %s", interval)
}

func (t *DispatcherTimer) stopLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
	t.generation++
	t.logger.Debug("timer stopped")
}

func (t *DispatcherTimer) loop(gen uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			t.dispatcher.Dispatch(func() { t.tick(gen, now) })
		}
	}
}

func (t *DispatcherTimer) tick(gen uint64, now time.Time) {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return
	}
	handlers := make([]TickHandler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	for _, h := range handlers {
		t.safeCall(h, now)
	}
}

func (t *DispatcherTimer) safeCall(h TickHandler, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("tick handler panicked: %v", r)
		}
	}()
	h(now)
}
