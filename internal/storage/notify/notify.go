// Package notify provides map-changed notification for settings containers.
//
// A Notifier keeps the observer list for one container. The first observer
// added activates the backend's native listener and removing the last one
// deactivates it, so a backend is only watched while someone is listening.
package notify

import (
	"errors"
	"reflect"
	"sync"
)

// ErrNotComparable is returned when an observer cannot be used as an identity.
var ErrNotComparable = errors.New("notify: observer is not comparable")

// ChangeType represents the kind of map change.
type ChangeType int

const (
	// ChangeReset indicates the map changed in an unspecified way and must be
	// re-read in full. Backends that only learn "something changed" emit it.
	ChangeReset ChangeType = iota

	// ChangeInserted indicates a new key was added.
	ChangeInserted

	// ChangeRemoved indicates a key was removed.
	ChangeRemoved

	// ChangeChanged indicates an existing key was overwritten.
	ChangeChanged
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeReset:
		return "reset"
	case ChangeInserted:
		return "inserted"
	case ChangeRemoved:
		return "removed"
	case ChangeChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Change represents a map-changed event.
type Change struct {
	// Key is the affected key. Reset events may leave it empty.
	Key string

	// Type is the type of change.
	Type ChangeType

	// Source identifies the backend that raised the change.
	Source string
}

// Observer receives map-changed events. Observers are identified by value,
// so implementations must be comparable (pointer receivers are typical).
type Observer interface {
	OnChange(change Change)
}

// FuncObserver adapts a function to the Observer interface. Use Func to
// obtain one; the pointer is the observer's identity.
type FuncObserver struct {
	fn func(Change)
}

// Func wraps fn in a new observer with its own identity.
func Func(fn func(Change)) *FuncObserver {
	return &FuncObserver{fn: fn}
}

// OnChange calls the wrapped function.
func (f *FuncObserver) OnChange(change Change) {
	if f != nil && f.fn != nil {
		f.fn(change)
	}
}

// Notifier manages the observers of one container.
type Notifier struct {
	// transition serialises Add/Remove so activation happens exactly once per
	// 0->1 edge. It is never held while observers run.
	transition sync.Mutex

	mu        sync.RWMutex
	observers []Observer
	active    bool

	activate   func() error
	deactivate func() error

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous delivery on a dedicated goroutine.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// WithActivation sets the hooks run on the first Add and the last Remove.
// Either may be nil.
func WithActivation(activate, deactivate func() error) Option {
	return func(n *Notifier) {
		n.activate = activate
		n.deactivate = deactivate
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		done: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Add registers an observer. Adding an observer that is already registered
// is a no-op. When the list goes from empty to non-empty the activation hook
// runs; if it fails the observer is not added and the error is returned.
func (n *Notifier) Add(o Observer) error {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return ErrNotComparable
	}

	n.transition.Lock()
	defer n.transition.Unlock()

	n.mu.RLock()
	exists := n.indexOf(o) >= 0
	first := len(n.observers) == 0
	n.mu.RUnlock()

	if exists {
		return nil
	}

	if first && !n.active {
		if n.activate != nil {
			if err := n.activate(); err != nil {
				return err
			}
		}
		n.mu.Lock()
		n.active = true
		n.mu.Unlock()
	}

	n.mu.Lock()
	n.observers = append(n.observers, o)
	n.mu.Unlock()
	return nil
}

// Remove unregisters an observer. Removing an unknown observer is a no-op.
// When the last observer is removed the deactivation hook runs.
func (n *Notifier) Remove(o Observer) error {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return ErrNotComparable
	}

	n.transition.Lock()
	defer n.transition.Unlock()

	n.mu.Lock()
	idx := n.indexOf(o)
	if idx < 0 {
		n.mu.Unlock()
		return nil
	}
	n.observers = append(n.observers[:idx:idx], n.observers[idx+1:]...)
	last := len(n.observers) == 0 && n.active
	if last {
		n.active = false
	}
	n.mu.Unlock()

	if last && n.deactivate != nil {
		return n.deactivate()
	}
	return nil
}

// Len returns the number of registered observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Active reports whether the activation hook is currently in effect.
func (n *Notifier) Active() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// Notify sends a change to all observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}

	n.deliverChange(change)
}

// Close shuts down the notifier. It is safe to call Close multiple times.
// Observers stay registered; the deactivation hook is not run.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) indexOf(o Observer) int {
	for i, existing := range n.observers {
		if existing == o {
			return i
		}
	}
	return -1
}

func (n *Notifier) deliverChange(change Change) {
	n.mu.RLock()
	observers := make([]Observer, len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()

	for _, obs := range observers {
		safeCall(obs, change)
	}
}

// safeCall keeps one panicking observer from starving the rest.
func safeCall(obs Observer, change Change) {
	defer func() {
		_ = recover()
	}()
	obs.OnChange(change)
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliverChange(change)
		case <-n.done:
			for {
				select {
				case change := <-n.buffer:
					n.deliverChange(change)
				default:
					return
				}
			}
		}
	}
}
