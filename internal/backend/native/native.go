// Package native is the settings backend for platforms whose native API
// already has the facade's shape: typed values, hierarchical containers per
// locality and precise change events.
//
// The store is held in memory. Every Backend opened on the same Store for
// the same locality sees the same tree. A Store created WithFile loads the
// local, roaming and shared trees from that file on first Open and writes
// them back on Flush; temporary data is never written.
package native

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/appshim/internal/backend/filestore"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/notify"
)

// Name is the backend name used in errors and logs.
const Name = "native"

// Store holds the container trees of every locality.
type Store struct {
	mu     sync.Mutex
	roots  map[storage.Locality]*node
	logger *logging.Logger

	file   *filestore.File
	loaded bool
	dirty  bool
}

// Option configures a Store.
type Option func(*Store)

// WithFile persists the store in the TOML file at path.
func WithFile(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.file = filestore.NewFile(path)
		}
	}
}

// New creates an empty store.
func New(logger *logging.Logger, opts ...Option) *Store {
	s := &Store{
		roots:  make(map[storage.Locality]*node),
		logger: logging.OrNull(logger).WithComponent(Name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file, or "" for a memory-only store.
func (s *Store) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Path()
}

// Open implements storage.Provider.
func (s *Store) Open(locality storage.Locality) (storage.Backend, error) {
	switch locality {
	case storage.LocalityLocal, storage.LocalityRoaming, storage.LocalityTemporary, storage.LocalitySharedLocal:
	default:
		return nil, fmt.Errorf("%w: locality %d", storage.ErrInvalidArgument, locality)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil && !s.loaded {
		if err := s.loadLocked(); err != nil {
			return nil, err
		}
		s.loaded = true
	}

	root, ok := s.roots[locality]
	if !ok {
		root = newNode("")
		s.roots[locality] = root
	}
	return &Backend{store: s, node: root, locality: locality}, nil
}

type node struct {
	name     string
	values   map[string]storage.Value
	children map[string]*node
	emitters map[*Backend]func(notify.Change)
}

func newNode(name string) *node {
	return &node{
		name:     name,
		values:   make(map[string]storage.Value),
		children: make(map[string]*node),
		emitters: make(map[*Backend]func(notify.Change)),
	}
}

// Backend is one container of a Store.
type Backend struct {
	store    *Store
	node     *node
	locality storage.Locality
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Locality implements storage.Backend.
func (b *Backend) Locality() storage.Locality { return b.locality }

// Get implements storage.Backend.
func (b *Backend) Get(key string) (storage.Value, bool, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	v, ok := b.node.values[key]
	return v, ok, nil
}

// Set implements storage.Backend.
func (b *Backend) Set(key string, v storage.Value) error {
	b.store.mu.Lock()
	_, existed := b.node.values[key]
	b.node.values[key] = v
	b.touchLocked()
	emitters := b.emittersLocked()
	b.store.mu.Unlock()

	typ := notify.ChangeInserted
	if existed {
		typ = notify.ChangeChanged
	}
	fire(emitters, notify.Change{Key: key, Type: typ, Source: Name})
	return nil
}

// Remove implements storage.Backend.
func (b *Backend) Remove(key string) (bool, error) {
	b.store.mu.Lock()
	_, existed := b.node.values[key]
	delete(b.node.values, key)
	if existed {
		b.touchLocked()
	}
	emitters := b.emittersLocked()
	b.store.mu.Unlock()

	if existed {
		fire(emitters, notify.Change{Key: key, Type: notify.ChangeRemoved, Source: Name})
	}
	return existed, nil
}

// Contains implements storage.Backend.
func (b *Backend) Contains(key string) (bool, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	_, ok := b.node.values[key]
	return ok, nil
}

// Keys implements storage.Backend.
func (b *Backend) Keys() ([]string, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	keys := make([]string, 0, len(b.node.values))
	for k := range b.node.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count implements storage.Backend.
func (b *Backend) Count() (storage.Count, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	return storage.KnownCount(len(b.node.values)), nil
}

// Clear implements storage.Backend. Observers receive a single reset.
func (b *Backend) Clear() error {
	b.store.mu.Lock()
	had := len(b.node.values) > 0
	b.node.values = make(map[string]storage.Value)
	if had {
		b.touchLocked()
	}
	emitters := b.emittersLocked()
	b.store.mu.Unlock()

	if had {
		fire(emitters, notify.Change{Type: notify.ChangeReset, Source: Name})
	}
	return nil
}

// CreateContainer implements storage.Nester.
func (b *Backend) CreateContainer(name string, disposition storage.Disposition) (storage.Backend, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	child, ok := b.node.children[name]
	if !ok {
		if disposition == storage.DispositionExisting {
			return nil, fmt.Errorf("%w: %q", storage.ErrContainerNotFound, name)
		}
		child = newNode(name)
		b.node.children[name] = child
		b.touchLocked()
		b.store.logger.Debug("created %s container %q under %q", b.locality, name, b.node.name)
	}
	return &Backend{store: b.store, node: child, locality: b.locality}, nil
}

// DeleteContainer implements storage.Deleter. It removes the child
// container name and everything below it.
func (b *Backend) DeleteContainer(name string) (bool, error) {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if _, ok := b.node.children[name]; !ok {
		return false, nil
	}
	delete(b.node.children, name)
	b.touchLocked()
	return true, nil
}

// Flush implements storage.Flusher by saving the store.
func (b *Backend) Flush() error {
	return b.store.Save()
}

func (b *Backend) touchLocked() {
	if b.locality != storage.LocalityTemporary {
		b.store.dirty = true
	}
}

// StartListening implements storage.ChangeSource.
func (b *Backend) StartListening(emit func(notify.Change)) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	b.node.emitters[b] = emit
	return nil
}

// StopListening implements storage.ChangeSource.
func (b *Backend) StopListening() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	delete(b.node.emitters, b)
	return nil
}

func (b *Backend) emittersLocked() []func(notify.Change) {
	if len(b.node.emitters) == 0 {
		return nil
	}
	out := make([]func(notify.Change), 0, len(b.node.emitters))
	for _, emit := range b.node.emitters {
		out = append(out, emit)
	}
	return out
}

func fire(emitters []func(notify.Change), c notify.Change) {
	for _, emit := range emitters {
		emit(c)
	}
}
