package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/appshim/internal/storage/notify"
)

// Locality classifies where a container's data lives.
type Locality int

const (
	// LocalityLocal is device-local data.
	LocalityLocal Locality = iota
	// LocalityRoaming is data synchronised across the user's devices.
	LocalityRoaming
	// LocalityTemporary is data the system may discard at any time.
	LocalityTemporary
	// LocalitySharedLocal is device-local data shared with other apps of
	// the same publisher.
	LocalitySharedLocal
)

// String returns the locality name.
func (l Locality) String() string {
	switch l {
	case LocalityLocal:
		return "local"
	case LocalityRoaming:
		return "roaming"
	case LocalityTemporary:
		return "temporary"
	case LocalitySharedLocal:
		return "shared"
	default:
		return "unknown"
	}
}

// ParseLocality parses a locality name as returned by Locality.String.
func ParseLocality(s string) (Locality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return LocalityLocal, nil
	case "roaming":
		return LocalityRoaming, nil
	case "temporary", "temp":
		return LocalityTemporary, nil
	case "shared", "sharedlocal":
		return LocalitySharedLocal, nil
	default:
		return LocalityLocal, fmt.Errorf("%w: unknown locality %q", ErrInvalidArgument, s)
	}
}

// Disposition is the policy for CreateContainer.
type Disposition int

const (
	// DispositionAlways opens the container, creating it if needed.
	DispositionAlways Disposition = iota
	// DispositionExisting opens the container only if it already exists.
	DispositionExisting
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case DispositionAlways:
		return "always"
	case DispositionExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// Count is the number of keys in a container, which some backends cannot
// report.
type Count struct {
	N     int
	Known bool
}

// UnknownCount is the count reported by backends without a cardinality query.
var UnknownCount = Count{}

// KnownCount returns a known count of n.
func KnownCount(n int) Count {
	return Count{N: n, Known: true}
}

// Get returns the count and whether it is known.
func (c Count) Get() (int, bool) {
	return c.N, c.Known
}

// String returns the count, or "unknown".
func (c Count) String() string {
	if !c.Known {
		return "unknown"
	}
	return strconv.Itoa(c.N)
}

// Backend is a native key/value store that one container delegates to.
// Keys reaching a backend are non-empty and NFC-normalised; values are
// never Null (the facade turns a Null write into Remove).
//
// Operations a backend has no native equivalent for return an error
// wrapping ErrOperationNotSupported.
type Backend interface {
	// Name identifies the backend in errors and logs.
	Name() string

	// Locality is the locality the backend was opened for.
	Locality() Locality

	// Get returns the stored value and whether the key exists.
	Get(key string) (Value, bool, error)

	// Set stores v under key, replacing any previous value and kind.
	Set(key string, v Value) error

	// Remove deletes key and reports whether it existed. Backends that
	// cannot tell may always report true.
	Remove(key string) (bool, error)

	// Contains reports whether key exists.
	Contains(key string) (bool, error)

	// Keys returns a snapshot of the keys.
	Keys() ([]string, error)

	// Count returns the number of keys, possibly unknown.
	Count() (Count, error)

	// Clear removes every key.
	Clear() error
}

// ChangeSource is implemented by backends that can detect mutation of the
// underlying store. StartListening is called when a container gains its
// first observer and StopListening when it loses its last. emit may be
// called from any goroutine.
type ChangeSource interface {
	StartListening(emit func(notify.Change)) error
	StopListening() error
}

// Nester is implemented by backends that support child containers.
type Nester interface {
	CreateContainer(name string, disposition Disposition) (Backend, error)
}

// Deleter is implemented by nesting backends that can delete child
// containers.
type Deleter interface {
	DeleteContainer(name string) (bool, error)
}

// Flusher is implemented by backends that defer persistence.
type Flusher interface {
	Flush() error
}

// Provider opens the root backend for a locality.
type Provider interface {
	Open(locality Locality) (Backend, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(locality Locality) (Backend, error)

// Open calls f.
func (f ProviderFunc) Open(locality Locality) (Backend, error) {
	return f(locality)
}
