package storage

import (
	"sort"
	"sync"

	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage/notify"
)

// memBackend is an in-memory Backend used by the facade tests.
type memBackend struct {
	mu       sync.Mutex
	name     string
	locality Locality
	data     map[string]Value
	emit     func(notify.Change)

	starts  int
	stops   int
	flushes int
	closed  bool

	startErr error
}

func newMemBackend(loc Locality) *memBackend {
	return &memBackend{name: "mem", locality: loc, data: make(map[string]Value)}
}

func (m *memBackend) Name() string       { return m.name }
func (m *memBackend) Locality() Locality { return m.locality }

func (m *memBackend) Get(key string) (Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Set(key string, v Value) error {
	m.mu.Lock()
	_, existed := m.data[key]
	m.data[key] = v
	emit := m.emit
	m.mu.Unlock()

	if emit != nil {
		typ := notify.ChangeInserted
		if existed {
			typ = notify.ChangeChanged
		}
		emit(notify.Change{Key: key, Type: typ})
	}
	return nil
}

func (m *memBackend) Remove(key string) (bool, error) {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	emit := m.emit
	m.mu.Unlock()

	if existed && emit != nil {
		emit(notify.Change{Key: key, Type: notify.ChangeRemoved})
	}
	return existed, nil
}

func (m *memBackend) Contains(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBackend) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memBackend) Count() (Count, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return KnownCount(len(m.data)), nil
}

func (m *memBackend) Clear() error {
	m.mu.Lock()
	m.data = make(map[string]Value)
	m.mu.Unlock()
	return nil
}

func (m *memBackend) StartListening(emit func(notify.Change)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.emit = emit
	return nil
}

func (m *memBackend) StopListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.emit = nil
	return nil
}

func (m *memBackend) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *memBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// nestingBackend adds child containers to memBackend.
type nestingBackend struct {
	*memBackend
	children map[string]*nestingBackend
}

func newNestingBackend(loc Locality) *nestingBackend {
	return &nestingBackend{memBackend: newMemBackend(loc), children: make(map[string]*nestingBackend)}
}

func (n *nestingBackend) CreateContainer(name string, d Disposition) (Backend, error) {
	if child, ok := n.children[name]; ok {
		return child, nil
	}
	if d == DispositionExisting {
		return nil, ErrContainerNotFound
	}
	child := newNestingBackend(n.locality)
	n.children[name] = child
	return child, nil
}

func (n *nestingBackend) DeleteContainer(name string) (bool, error) {
	_, ok := n.children[name]
	delete(n.children, name)
	return ok, nil
}

// plainBackend hides every optional capability of memBackend.
type plainBackend struct {
	b *memBackend
}

func (p plainBackend) Name() string                        { return "plain" }
func (p plainBackend) Locality() Locality                  { return p.b.Locality() }
func (p plainBackend) Get(key string) (Value, bool, error) { return p.b.Get(key) }
func (p plainBackend) Set(key string, v Value) error       { return p.b.Set(key, v) }
func (p plainBackend) Remove(key string) (bool, error)     { return p.b.Remove(key) }
func (p plainBackend) Contains(key string) (bool, error)   { return p.b.Contains(key) }
func (p plainBackend) Keys() ([]string, error)             { return p.b.Keys() }
func (p plainBackend) Count() (Count, error)               { return p.b.Count() }
func (p plainBackend) Clear() error                        { return p.b.Clear() }

// refusingBackend fails every operation as unsupported.
type refusingBackend struct{}

func (refusingBackend) Name() string                    { return "refusing" }
func (refusingBackend) Locality() Locality              { return LocalityLocal }
func (refusingBackend) Get(string) (Value, bool, error) { return Null(), false, ErrOperationNotSupported }
func (refusingBackend) Set(string, Value) error         { return ErrOperationNotSupported }
func (refusingBackend) Remove(string) (bool, error)     { return false, ErrOperationNotSupported }
func (refusingBackend) Contains(string) (bool, error)   { return false, ErrOperationNotSupported }
func (refusingBackend) Keys() ([]string, error)         { return nil, ErrOperationNotSupported }
func (refusingBackend) Count() (Count, error)           { return UnknownCount, ErrOperationNotSupported }
func (refusingBackend) Clear() error                    { return ErrOperationNotSupported }

func testSettings(b Backend) *Settings {
	return newSettings(b, &options{logger: logging.NullLogger})
}

func nullLogger() *logging.Logger {
	return logging.NullLogger
}
