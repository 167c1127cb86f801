// Package isolated is the settings backend for platforms with an
// application-wide isolated settings dictionary. The dictionary is loaded
// once, mutated in memory and written back to a TOML file on Flush.
//
// Dates are stored in UTC, so a DateTime written with an offset reads back
// as the same instant with a zero offset.
package isolated

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/appshim/internal/backend/filestore"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/codec"
)

// Name is the backend name used in errors and logs.
const Name = "isolated"

// FileName is the settings file name inside the data directory.
const FileName = "__ApplicationSettings.toml"

// Config configures the isolated settings backend.
type Config struct {
	// DataDir is the isolated storage root.
	DataDir string
	// AutoSave writes the file after every mutation instead of on Flush.
	AutoSave bool
	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// Provider owns the application settings dictionary. Every locality opens
// the same dictionary.
type Provider struct {
	cfg    Config
	file   *filestore.File
	logger *logging.Logger

	mu     sync.Mutex
	loaded bool
	values map[string]storage.Value
	dirty  bool
}

// New creates a provider for cfg. The file is read on first Open.
func New(cfg Config) *Provider {
	return &Provider{
		cfg:    cfg,
		file:   filestore.NewFile(filepath.Join(cfg.DataDir, FileName)),
		logger: logging.OrNull(cfg.Logger).WithComponent(Name),
	}
}

// Open implements storage.Provider.
func (p *Provider) Open(locality storage.Locality) (storage.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		values, err := p.read()
		if err != nil {
			return nil, err
		}
		p.values = values
		p.loaded = true
	}
	return &Backend{p: p, locality: locality}, nil
}

// Save writes the dictionary if it has unsaved changes.
func (p *Provider) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked()
}

func (p *Provider) saveLocked() error {
	if !p.dirty {
		return nil
	}
	data, err := encode(p.values)
	if err != nil {
		return err
	}
	if err := p.file.Write(data); err != nil {
		return err
	}
	p.dirty = false
	p.logger.Debug("saved %d settings to %s", len(p.values), p.file.Path())
	return nil
}

func (p *Provider) read() (map[string]storage.Value, error) {
	data, err := p.file.Read()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return make(map[string]storage.Value), nil
	}
	return decode(data)
}

// mutate runs fn under the lock, marks the dictionary dirty when fn
// reports a change and saves immediately under AutoSave.
func (p *Provider) mutate(fn func(values map[string]storage.Value) bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !fn(p.values) {
		return nil
	}
	p.dirty = true
	if p.cfg.AutoSave {
		return p.saveLocked()
	}
	return nil
}

// Backend is the settings dictionary seen from one locality.
type Backend struct {
	p        *Provider
	locality storage.Locality
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Locality implements storage.Backend.
func (b *Backend) Locality() storage.Locality { return b.locality }

// Get implements storage.Backend.
func (b *Backend) Get(key string) (storage.Value, bool, error) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()

	v, ok := b.p.values[key]
	return v, ok, nil
}

// Set implements storage.Backend.
func (b *Backend) Set(key string, v storage.Value) error {
	if t, ok := v.AsTime(); ok {
		v = storage.DateTime(t.UTC())
	}
	return b.p.mutate(func(values map[string]storage.Value) bool {
		if old, ok := values[key]; ok && old.Equal(v) {
			return false
		}
		values[key] = v
		return true
	})
}

// Remove implements storage.Backend.
func (b *Backend) Remove(key string) (bool, error) {
	var removed bool
	err := b.p.mutate(func(values map[string]storage.Value) bool {
		_, removed = values[key]
		delete(values, key)
		return removed
	})
	return removed, err
}

// Contains implements storage.Backend.
func (b *Backend) Contains(key string) (bool, error) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()

	_, ok := b.p.values[key]
	return ok, nil
}

// Keys implements storage.Backend.
func (b *Backend) Keys() ([]string, error) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()

	keys := make([]string, 0, len(b.p.values))
	for k := range b.p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count implements storage.Backend.
func (b *Backend) Count() (storage.Count, error) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()

	return storage.KnownCount(len(b.p.values)), nil
}

// Clear implements storage.Backend.
func (b *Backend) Clear() error {
	return b.p.mutate(func(values map[string]storage.Value) bool {
		if len(values) == 0 {
			return false
		}
		clear(values)
		return true
	})
}

// Flush implements storage.Flusher.
func (b *Backend) Flush() error {
	return b.p.Save()
}

// record is one persisted setting. Value holds a native TOML scalar where
// the kind has one and the string form otherwise.
type record struct {
	Type  string `toml:"type"`
	Value any    `toml:"value"`
}

type document struct {
	Settings map[string]record `toml:"settings"`
}

func encode(values map[string]storage.Value) ([]byte, error) {
	doc := document{Settings: make(map[string]record, len(values))}
	for k, v := range values {
		doc.Settings[k] = record{Type: codec.TypeName(v.Kind()), Value: tomlValue(v)}
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return data, nil
}

func tomlValue(v storage.Value) any {
	switch v.Kind() {
	case storage.KindBool:
		b, _ := v.AsBool()
		return b
	case storage.KindInt16, storage.KindInt32, storage.KindInt64:
		i, _ := v.AsInt64()
		return i
	case storage.KindUint16, storage.KindUint32:
		u, _ := v.AsUint64()
		return int64(u)
	case storage.KindFloat64:
		f, _ := v.AsFloat64()
		return f
	case storage.KindDateTime:
		t, _ := v.AsTime()
		return t.UTC()
	default:
		// Uint64 may exceed TOML's integer range and Float32 must keep its
		// shortest single precision form.
		return v.String()
	}
}

func decode(data []byte) (map[string]storage.Value, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	values := make(map[string]storage.Value, len(doc.Settings))
	for k, r := range doc.Settings {
		v, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
		values[k] = v
	}
	return values, nil
}

func (r record) decode() (storage.Value, error) {
	kind, ok := codec.KindOf(r.Type)
	if !ok {
		kind = storage.KindString
	}

	switch x := r.Value.(type) {
	case time.Time:
		if kind == storage.KindDateTime {
			return storage.DateTime(x.UTC()), nil
		}
		return storage.ParseValue(kind, x.Format(time.RFC3339Nano))
	case string:
		return storage.ParseValue(kind, x)
	case bool:
		if kind == storage.KindBool {
			return storage.Bool(x), nil
		}
	case int64:
		return storage.ParseValue(kind, fmt.Sprint(x))
	case float64:
		if kind == storage.KindFloat64 {
			return storage.Float64(x), nil
		}
	}
	return storage.ParseValue(kind, fmt.Sprint(r.Value))
}
