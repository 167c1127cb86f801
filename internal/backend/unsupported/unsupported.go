// Package unsupported is the backend for platforms without a settings
// store. Every operation fails with storage.ErrOperationNotSupported.
package unsupported

import (
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/notify"
)

// Name is the backend name used in errors and logs.
const Name = "unsupported"

// Provider opens unsupported backends.
type Provider struct {
	// Platform is the identifier that had no backend, for error messages.
	Platform string
}

// Open implements storage.Provider. Opening succeeds so that callers get
// a container whose operations report the missing support individually.
func (p Provider) Open(locality storage.Locality) (storage.Backend, error) {
	return Backend{platform: p.Platform, locality: locality}, nil
}

// Backend refuses every operation.
type Backend struct {
	platform string
	locality storage.Locality
}

// Name implements storage.Backend.
func (b Backend) Name() string {
	if b.platform == "" {
		return Name
	}
	return Name + "(" + b.platform + ")"
}

// Locality implements storage.Backend.
func (b Backend) Locality() storage.Locality { return b.locality }

// Get implements storage.Backend.
func (Backend) Get(string) (storage.Value, bool, error) {
	return storage.Null(), false, storage.ErrOperationNotSupported
}

// Set implements storage.Backend.
func (Backend) Set(string, storage.Value) error { return storage.ErrOperationNotSupported }

// Remove implements storage.Backend.
func (Backend) Remove(string) (bool, error) { return false, storage.ErrOperationNotSupported }

// Contains implements storage.Backend.
func (Backend) Contains(string) (bool, error) { return false, storage.ErrOperationNotSupported }

// Keys implements storage.Backend.
func (Backend) Keys() ([]string, error) { return nil, storage.ErrOperationNotSupported }

// Count implements storage.Backend.
func (Backend) Count() (storage.Count, error) {
	return storage.UnknownCount, storage.ErrOperationNotSupported
}

// Clear implements storage.Backend.
func (Backend) Clear() error { return storage.ErrOperationNotSupported }

// StartListening implements storage.ChangeSource so that registering an
// observer fails too.
func (Backend) StartListening(func(notify.Change)) error { return storage.ErrOperationNotSupported }

// StopListening implements storage.ChangeSource.
func (Backend) StopListening() error { return nil }
