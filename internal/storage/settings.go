package storage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage/notify"
)

// ErrKeyNotFound is returned by the typed getters when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// MapChange describes a change to a container's settings.
type MapChange = notify.Change

// Observer receives map changes. Observers are identified by value; adding
// the same observer twice registers it once.
type Observer = notify.Observer

// ObserverFunc returns a new observer calling fn. Each call yields a
// distinct identity, so keep the result to remove it later.
func ObserverFunc(fn func(MapChange)) Observer {
	return notify.Func(fn)
}

// Settings is the key/value map of one container.
//
// Operations go straight to the backend; Settings adds no locking of its
// own beyond the observer list, so concurrent use is as safe as the
// backend makes it.
type Settings struct {
	backend  Backend
	notifier *notify.Notifier
	logger   *logging.Logger
}

func newSettings(b Backend, o *options) *Settings {
	s := &Settings{
		backend: b,
		logger:  o.logger.WithField("backend", b.Name()),
	}

	notifyOpts := []notify.Option{
		notify.WithActivation(s.activate, s.deactivate),
	}
	if o.asyncBuffer > 0 {
		notifyOpts = append(notifyOpts, notify.WithAsync(o.asyncBuffer))
	}
	s.notifier = notify.New(notifyOpts...)
	return s
}

func normalizeKey(op, backend, key string) (string, error) {
	if key == "" {
		return "", &OpError{Op: op, Backend: backend, Err: fmt.Errorf("%w: empty key", ErrInvalidArgument)}
	}
	return norm.NFC.String(key), nil
}

// Lookup returns the value stored under key and whether it exists.
func (s *Settings) Lookup(key string) (Value, bool, error) {
	k, err := normalizeKey("get", s.backend.Name(), key)
	if err != nil {
		return Null(), false, err
	}
	v, ok, err := s.backend.Get(k)
	if err != nil {
		return Null(), false, wrapOp("get", s.backend.Name(), k, err)
	}
	if !ok {
		return Null(), false, nil
	}
	return v, true, nil
}

// Get returns the value stored under key, or Null if it is absent.
func (s *Settings) Get(key string) (Value, error) {
	v, _, err := s.Lookup(key)
	return v, err
}

// Set stores v under key. Setting Null removes the key.
func (s *Settings) Set(key string, v Value) error {
	k, err := normalizeKey("set", s.backend.Name(), key)
	if err != nil {
		return err
	}
	if v.IsNull() {
		_, err := s.backend.Remove(k)
		return wrapOp("set", s.backend.Name(), k, err)
	}
	return wrapOp("set", s.backend.Name(), k, s.backend.Set(k, v))
}

// SetAny converts v with ValueOf and stores it.
func (s *Settings) SetAny(key string, v any) error {
	return s.Set(key, ValueOf(v))
}

// Remove deletes key and reports whether it existed. Removing an absent
// key is not an error.
func (s *Settings) Remove(key string) (bool, error) {
	k, err := normalizeKey("remove", s.backend.Name(), key)
	if err != nil {
		return false, err
	}
	removed, err := s.backend.Remove(k)
	if err != nil {
		return false, wrapOp("remove", s.backend.Name(), k, err)
	}
	return removed, nil
}

// ContainsKey reports whether key exists.
func (s *Settings) ContainsKey(key string) (bool, error) {
	k, err := normalizeKey("containsKey", s.backend.Name(), key)
	if err != nil {
		return false, err
	}
	ok, err := s.backend.Contains(k)
	return ok, wrapOp("containsKey", s.backend.Name(), k, err)
}

// ContainsEntry reports whether key exists and holds a value equal to v.
func (s *Settings) ContainsEntry(key string, v Value) (bool, error) {
	got, ok, err := s.Lookup(key)
	if err != nil || !ok {
		return false, err
	}
	return got.Equal(v), nil
}

// Keys returns the keys in sorted order.
func (s *Settings) Keys() ([]string, error) {
	keys, err := s.backend.Keys()
	if err != nil {
		return nil, wrapOp("keys", s.backend.Name(), "", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Values returns the values in key order.
func (s *Settings) Values() ([]Value, error) {
	var values []Value
	err := s.Range(func(_ string, v Value) bool {
		values = append(values, v)
		return true
	})
	return values, err
}

// Snapshot copies every entry into a map. Entries changed concurrently by
// another writer may or may not be reflected.
func (s *Settings) Snapshot() (map[string]Value, error) {
	out := make(map[string]Value)
	err := s.Range(func(k string, v Value) bool {
		out[k] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Range calls fn for each entry in key order until fn returns false.
// Keys removed between listing and reading are skipped.
func (s *Settings) Range(fn func(key string, v Value) bool) error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		v, ok, err := s.backend.Get(k)
		if err != nil {
			return wrapOp("get", s.backend.Name(), k, err)
		}
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Count returns the number of keys, which may be unknown.
func (s *Settings) Count() (Count, error) {
	c, err := s.backend.Count()
	if err != nil {
		return UnknownCount, wrapOp("count", s.backend.Name(), "", err)
	}
	return c, nil
}

// Clear removes every key.
func (s *Settings) Clear() error {
	return wrapOp("clear", s.backend.Name(), "", s.backend.Clear())
}

// GetString returns the string stored under key.
func (s *Settings) GetString(key string) (string, error) {
	v, err := s.typed(key, KindString)
	if err != nil {
		return "", err
	}
	str, _ := v.AsString()
	return str, nil
}

// GetBool returns the boolean stored under key.
func (s *Settings) GetBool(key string) (bool, error) {
	v, err := s.typed(key, KindBool)
	if err != nil {
		return false, err
	}
	b, _ := v.AsBool()
	return b, nil
}

// GetInt64 returns any signed integer stored under key.
func (s *Settings) GetInt64(key string) (int64, error) {
	v, err := s.present(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt64()
	if !ok {
		return 0, &TypeError{Expected: KindInt64, Actual: v.Kind()}
	}
	return i, nil
}

// GetFloat64 returns any floating point value stored under key.
func (s *Settings) GetFloat64(key string) (float64, error) {
	v, err := s.present(key)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat64()
	if !ok {
		return 0, &TypeError{Expected: KindFloat64, Actual: v.Kind()}
	}
	return f, nil
}

// GetTime returns the date-with-offset stored under key.
func (s *Settings) GetTime(key string) (time.Time, error) {
	v, err := s.typed(key, KindDateTime)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := v.AsTime()
	return t, nil
}

func (s *Settings) present(key string) (Value, error) {
	v, ok, err := s.Lookup(key)
	if err != nil {
		return Null(), err
	}
	if !ok {
		return Null(), fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

func (s *Settings) typed(key string, k Kind) (Value, error) {
	v, err := s.present(key)
	if err != nil {
		return Null(), err
	}
	if err := v.Expect(k); err != nil {
		return Null(), err
	}
	return v, nil
}

// AddObserver registers an observer for map changes. The first observer
// starts the backend's change listener. Backends that cannot detect changes
// accept observers but never notify them.
func (s *Settings) AddObserver(o Observer) error {
	return wrapOp("addObserver", s.backend.Name(), "", s.notifier.Add(o))
}

// RemoveObserver unregisters an observer. Removing the last observer stops
// the backend's change listener.
func (s *Settings) RemoveObserver(o Observer) error {
	return wrapOp("removeObserver", s.backend.Name(), "", s.notifier.Remove(o))
}

// Observers returns the number of registered observers.
func (s *Settings) Observers() int {
	return s.notifier.Len()
}

// Listening reports whether the backend's change listener is active.
func (s *Settings) Listening() bool {
	return s.notifier.Active()
}

func (s *Settings) activate() error {
	src, ok := s.backend.(ChangeSource)
	if !ok {
		return nil
	}
	s.logger.Debug("starting change listener")
	return src.StartListening(func(c notify.Change) {
		if c.Source == "" {
			c.Source = s.backend.Name()
		}
		s.notifier.Notify(c)
	})
}

func (s *Settings) deactivate() error {
	src, ok := s.backend.(ChangeSource)
	if !ok {
		return nil
	}
	s.logger.Debug("stopping change listener")
	return src.StopListening()
}

func (s *Settings) close() {
	s.notifier.Close()
}
