// Package defaults is the settings backend for platforms with a user
// defaults database: one property document per domain, with a separate
// ubiquitous store for roaming data.
//
// Documents are JSON files. Numbers are stored with the Objective-C type
// code of the number object that would hold them, so every integer and
// float kind survives a round trip:
//
//	{"volume": {"type": "i", "value": 7}, "name": "ada", "on": true}
//
// The store cannot enumerate its keys or count them. Child containers are
// existing suites (other domains) and cannot be created.
package defaults

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dshills/appshim/internal/backend/filestore"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/notify"
)

// Name is the backend name used in errors and logs.
const Name = "defaults"

// GlobalDomain is the suite name reserved for system-wide defaults.
const GlobalDomain = "NSGlobalDomain"

// Config configures the defaults backend.
type Config struct {
	// DataDir is the application library directory.
	DataDir string
	// AppID is the bundle identifier naming the standard domain.
	AppID string
	// Watch enables change listening on local domains.
	Watch bool
	// Debounce is the coalescing delay for change events.
	Debounce time.Duration
	// NoSuites disables opening suites as child containers, for platforms
	// whose defaults API has no suite support.
	NoSuites bool
	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// DomainPath returns the document path of the named domain.
func (cfg Config) DomainPath(domain string) string {
	return filepath.Join(cfg.DataDir, "Preferences", domain+".json")
}

// UbiquitousPath returns the document path of the roaming store.
func (cfg Config) UbiquitousPath() string {
	return filepath.Join(cfg.DataDir, "Ubiquitous", cfg.AppID+".json")
}

// SharedDomain is the suite opened for the SharedLocal root.
func (cfg Config) SharedDomain() string {
	return "group." + cfg.AppID
}

// Provider opens defaults domains.
type Provider struct {
	cfg    Config
	logger *logging.Logger
}

// New creates a provider for cfg.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, logger: logging.OrNull(cfg.Logger).WithComponent(Name)}
}

// Open implements storage.Provider. Local and Temporary share the standard
// domain; Roaming opens the ubiquitous store.
func (p *Provider) Open(locality storage.Locality) (storage.Backend, error) {
	switch locality {
	case storage.LocalityRoaming:
		return p.backend(locality, p.cfg.UbiquitousPath(), true), nil
	case storage.LocalitySharedLocal:
		return p.backend(locality, p.cfg.DomainPath(p.cfg.SharedDomain()), false), nil
	default:
		return p.backend(locality, p.cfg.DomainPath(p.cfg.AppID), false), nil
	}
}

func (p *Provider) backend(locality storage.Locality, path string, roaming bool) *Backend {
	b := &Backend{
		p:        p,
		file:     filestore.NewFile(path),
		locality: locality,
		roaming:  roaming,
	}
	if p.cfg.Watch && !roaming {
		b.listener = filestore.NewListener(path, Name, p.cfg.Debounce, p.logger)
	}
	return b
}

// Backend is one defaults domain or the ubiquitous store.
type Backend struct {
	p        *Provider
	file     *filestore.File
	locality storage.Locality
	roaming  bool
	listener *filestore.Listener
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Locality implements storage.Backend.
func (b *Backend) Locality() storage.Locality { return b.locality }

// Path returns the document path.
func (b *Backend) Path() string { return b.file.Path() }

// Get implements storage.Backend.
func (b *Backend) Get(key string) (storage.Value, bool, error) {
	data, err := b.file.Read()
	if err != nil {
		return storage.Null(), false, err
	}
	return getValue(data, key)
}

// Set implements storage.Backend.
func (b *Backend) Set(key string, v storage.Value) error {
	return b.file.Update(func(data []byte) ([]byte, error) {
		return setValue(data, key, v, b.roaming)
	})
}

// Remove implements storage.Backend. The store cannot report whether the
// key existed beforehand without a read, so Remove reads first.
func (b *Backend) Remove(key string) (bool, error) {
	var existed bool
	err := b.file.Update(func(data []byte) ([]byte, error) {
		var out []byte
		var err error
		out, existed, err = deleteValue(data, key)
		return out, err
	})
	return existed, err
}

// Contains implements storage.Backend.
func (b *Backend) Contains(key string) (bool, error) {
	data, err := b.file.Read()
	if err != nil {
		return false, err
	}
	return hasValue(data, key)
}

// Keys implements storage.Backend. The defaults database has no key
// enumeration.
func (b *Backend) Keys() ([]string, error) {
	return nil, storage.ErrOperationNotSupported
}

// Count implements storage.Backend. The count is never known.
func (b *Backend) Count() (storage.Count, error) {
	return storage.UnknownCount, nil
}

// Clear implements storage.Backend by reinitialising the domain.
func (b *Backend) Clear() error {
	return b.file.Write(emptyDocument())
}

// CreateContainer implements storage.Nester. Only existing suites can be
// opened; name must not be the standard domain or the global domain.
func (b *Backend) CreateContainer(name string, disposition storage.Disposition) (storage.Backend, error) {
	if b.p.cfg.NoSuites {
		return nil, fmt.Errorf("%w: suites are not available", storage.ErrOperationNotSupported)
	}
	if disposition != storage.DispositionExisting {
		return nil, fmt.Errorf("%w: only existing suites can be opened", storage.ErrInvalidArgument)
	}
	if name == "" || name == b.p.cfg.AppID || name == GlobalDomain {
		return nil, fmt.Errorf("%w: %q is not a valid suite name", storage.ErrInvalidArgument, name)
	}

	path := b.p.cfg.DomainPath(name)
	child := b.p.backend(storage.LocalitySharedLocal, path, false)
	if !child.file.Exists() {
		return nil, fmt.Errorf("%w: suite %q", storage.ErrContainerNotFound, name)
	}
	return child, nil
}

// StartListening implements storage.ChangeSource. The ubiquitous store
// never raises events.
func (b *Backend) StartListening(emit func(notify.Change)) error {
	if b.listener == nil {
		return nil
	}
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
