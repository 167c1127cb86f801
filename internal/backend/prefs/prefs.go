// Package prefs is the settings backend for platforms with a shared
// preferences store: one XML file per application holding named entries.
//
// Values are written as string sets in the legacy tagged-pair form, so an
// entry looks like
//
//	<set name="volume">
//	    <string>Int32</string>
//	    <string>7</string>
//	</set>
//
// Plain typed entries (string, int, long, float, boolean) written by other
// code are read as their natural kind and left untouched unless overwritten.
package prefs

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/dshills/appshim/internal/backend/filestore"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/codec"
	"github.com/dshills/appshim/internal/storage/notify"
)

// Name is the backend name used in errors and logs.
const Name = "prefs"

// Config configures the preferences backend.
type Config struct {
	// DataDir is the application data directory.
	DataDir string
	// AppID names the preferences file.
	AppID string
	// Watch enables change listening.
	Watch bool
	// Debounce is the coalescing delay for change events.
	Debounce time.Duration
	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// Path returns the default preferences file for cfg.
func (cfg Config) Path() string {
	return filepath.Join(cfg.DataDir, "shared_prefs", cfg.AppID+"_preferences.xml")
}

// Provider opens the default preferences file for every locality.
type Provider struct {
	cfg    Config
	file   *filestore.File
	logger *logging.Logger
}

// New creates a provider for cfg.
func New(cfg Config) *Provider {
	return &Provider{
		cfg:    cfg,
		file:   filestore.NewFile(cfg.Path()),
		logger: logging.OrNull(cfg.Logger).WithComponent(Name),
	}
}

// Open implements storage.Provider. The store has a single default file,
// so every locality maps onto it.
func (p *Provider) Open(locality storage.Locality) (storage.Backend, error) {
	b := &Backend{
		file:     p.file,
		locality: locality,
		logger:   p.logger,
	}
	if p.cfg.Watch {
		b.listener = filestore.NewListener(p.file.Path(), Name, p.cfg.Debounce, p.logger)
	}
	return b, nil
}

// Backend is the preferences file seen from one locality.
type Backend struct {
	file     *filestore.File
	locality storage.Locality
	listener *filestore.Listener
	logger   *logging.Logger
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Locality implements storage.Backend.
func (b *Backend) Locality() storage.Locality { return b.locality }

// Path returns the preferences file path.
func (b *Backend) Path() string { return b.file.Path() }

func (b *Backend) load() (*document, error) {
	data, err := b.file.Read()
	if err != nil {
		return nil, err
	}
	return parseDocument(data)
}

// update applies fn to the document and saves it if fn reports a change.
func (b *Backend) update(fn func(d *document) (bool, error)) error {
	return b.file.Update(func(data []byte) ([]byte, error) {
		d, err := parseDocument(data)
		if err != nil {
			return nil, err
		}
		changed, err := fn(d)
		if err != nil || !changed {
			return nil, err
		}
		return d.marshal()
	})
}

// Get implements storage.Backend.
func (b *Backend) Get(key string) (storage.Value, bool, error) {
	d, err := b.load()
	if err != nil {
		return storage.Null(), false, err
	}
	e, ok := d.entry(key)
	if !ok {
		return storage.Null(), false, nil
	}
	return e.value()
}

// Set implements storage.Backend.
func (b *Backend) Set(key string, v storage.Value) error {
	pair := codec.Encode(v)
	return b.update(func(d *document) (bool, error) {
		d.put(newSetEntry(key, pair.Slice()))
		return true, nil
	})
}

// Remove implements storage.Backend.
func (b *Backend) Remove(key string) (bool, error) {
	var removed bool
	err := b.update(func(d *document) (bool, error) {
		removed = d.remove(key)
		return removed, nil
	})
	return removed, err
}

// Contains implements storage.Backend.
func (b *Backend) Contains(key string) (bool, error) {
	d, err := b.load()
	if err != nil {
		return false, err
	}
	e, ok := d.entry(key)
	return ok && e.present(), nil
}

// Keys implements storage.Backend.
func (b *Backend) Keys() ([]string, error) {
	d, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.present() {
			keys = append(keys, e.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Count implements storage.Backend.
func (b *Backend) Count() (storage.Count, error) {
	keys, err := b.Keys()
	if err != nil {
		return storage.UnknownCount, err
	}
	return storage.KnownCount(len(keys)), nil
}

// Clear implements storage.Backend.
func (b *Backend) Clear() error {
	return b.update(func(d *document) (bool, error) {
		if len(d.Entries) == 0 {
			return false, nil
		}
		d.Entries = nil
		return true, nil
	})
}

// StartListening implements storage.ChangeSource. Without watching enabled
// observers are accepted but never notified.
func (b *Backend) StartListening(emit func(notify.Change)) error {
	if b.listener == nil {
		return nil
	}
	b.logger.Debug("listening for changes to %s", b.file.Path())
	return b.listener.Start(emit)
}

// StopListening implements storage.ChangeSource.
func (b *Backend) StopListening() error {
	if b.listener == nil {
		return nil
	}
	return b.listener.Stop()
}

// Close implements io.Closer.
func (b *Backend) Close() error {
	return b.StopListening()
}
