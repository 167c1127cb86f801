package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/appshim/internal/logging"
)

// ErrClosed is returned by AppData after Close.
var ErrClosed = errors.New("app data closed")

type options struct {
	logger      *logging.Logger
	asyncBuffer int
}

// Option configures an AppData.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNull(l)
	}
}

// WithAsyncNotifications delivers map changes on a dedicated goroutine per
// container, buffering up to size changes.
func WithAsyncNotifications(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.asyncBuffer = size
		}
	}
}

// AppData hands out the root settings container of each locality. Roots are
// opened on first access and live until Close.
type AppData struct {
	provider Provider
	opts     *options

	mu     sync.Mutex
	roots  map[Locality]*Container
	closed bool
}

// New creates an AppData backed by provider.
func New(provider Provider, opts ...Option) *AppData {
	o := &options{logger: logging.NullLogger}
	for _, opt := range opts {
		opt(o)
	}
	return &AppData{
		provider: provider,
		opts:     o,
		roots:    make(map[Locality]*Container),
	}
}

// LocalSettings returns the root container for device-local settings.
func (a *AppData) LocalSettings() (*Container, error) {
	return a.Container(LocalityLocal)
}

// RoamingSettings returns the root container for roaming settings.
func (a *AppData) RoamingSettings() (*Container, error) {
	return a.Container(LocalityRoaming)
}

// TemporarySettings returns the root container for temporary settings.
func (a *AppData) TemporarySettings() (*Container, error) {
	return a.Container(LocalityTemporary)
}

// SharedLocalSettings returns the root container for settings shared with
// other apps of the same publisher.
func (a *AppData) SharedLocalSettings() (*Container, error) {
	return a.Container(LocalitySharedLocal)
}

// Container returns the root container for locality, opening it on first use.
func (a *AppData) Container(locality Locality) (*Container, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if c, ok := a.roots[locality]; ok {
		return c, nil
	}
	if a.provider == nil {
		return nil, &OpError{Op: "open", Backend: "none", Key: locality.String(), Err: ErrOperationNotSupported}
	}

	b, err := a.provider.Open(locality)
	if err != nil {
		return nil, fmt.Errorf("opening %s settings: %w", locality, err)
	}

	c := newContainer("", b, a.opts)
	a.roots[locality] = c
	a.opts.logger.Debug("opened %s settings on %s", locality, b.Name())
	return c, nil
}

// Flush persists every open container whose backend defers writes.
func (a *AppData) Flush() error {
	a.mu.Lock()
	roots := make([]*Container, 0, len(a.roots))
	for _, c := range a.roots {
		roots = append(roots, c)
	}
	a.mu.Unlock()

	var errs []error
	for _, c := range roots {
		errs = append(errs, c.flush())
	}
	return errors.Join(errs...)
}

// Close flushes and releases every open container. It is safe to call
// Close multiple times.
func (a *AppData) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	roots := a.roots
	a.roots = make(map[Locality]*Container)
	a.mu.Unlock()

	var errs []error
	for _, c := range roots {
		errs = append(errs, c.close())
	}
	return errors.Join(errs...)
}
