// Package filestore holds the pieces shared by backends that keep their
// settings in a single file: change listening through the file watcher and
// locked read-modify-write cycles.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage/filelock"
	"github.com/dshills/appshim/internal/storage/notify"
	"github.com/dshills/appshim/internal/storage/watcher"
)

// File is a settings file guarded by a cross-process lock.
type File struct {
	path string
	lock *filelock.Lock
}

// NewFile returns a handle for the settings file at path.
func NewFile(path string) *File {
	return &File{path: path, lock: filelock.New(path)}
}

// Path returns the settings file path.
func (f *File) Path() string {
	return f.path
}

// Exists reports whether the file exists.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Read returns the file contents, or nil if the file does not exist.
func (f *File) Read() ([]byte, error) {
	var data []byte
	err := f.lock.With(func() error {
		var err error
		data, err = filelock.ReadFile(f.path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return data, nil
}

// Update reads the file, passes its contents to fn and writes back what fn
// returns, all under the lock. When fn returns nil data and no error the
// file is left untouched.
func (f *File) Update(fn func(data []byte) ([]byte, error)) error {
	return f.lock.With(func() error {
		data, err := filelock.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.path, err)
		}
		out, err := fn(data)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		return filelock.WriteFile(f.path, out, 0o600)
	})
}

// Write replaces the file contents under the lock.
func (f *File) Write(data []byte) error {
	return f.lock.With(func() error {
		return filelock.WriteFile(f.path, data, 0o600)
	})
}

// Listener turns external modification of a settings file into reset
// events. It owns a file watcher only while listening.
type Listener struct {
	path     string
	source   string
	debounce time.Duration
	logger   *logging.Logger

	mu sync.Mutex
	w  *watcher.Watcher
}

// NewListener creates a listener for the file at path. Events carry source
// as their origin.
func NewListener(path, source string, debounce time.Duration, logger *logging.Logger) *Listener {
	return &Listener{
		path:     path,
		source:   source,
		debounce: debounce,
		logger:   logging.OrNull(logger),
	}
}

// Start begins watching and calls emit with a reset event whenever the file
// changes. Starting a running listener is a no-op.
func (l *Listener) Start(emit func(notify.Change)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	w, err := watcher.New(watcher.WithDebounce(l.debounce), watcher.WithLogger(l.logger))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.OnChange(func(e watcher.Event) {
		l.logger.Debug("%s changed (%s)", e.Path, e.Op)
		emit(notify.Change{Type: notify.ChangeReset, Source: l.source})
	})
	if err := w.Watch(l.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching %s: %w", l.path, err)
	}

	l.w = w
	return nil
}

// Stop ends watching. Stopping an idle listener is a no-op.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return nil
	}
	w := l.w
	l.w = nil

	err := w.Unwatch(l.path)
	if errors.Is(err, watcher.ErrNotWatching) {
		err = nil
	}
	stats := w.Stats()
	l.logger.Debug("stopped watching %s: %d events, %d errors", l.path, stats.TotalEvents, stats.Errors)
	return errors.Join(err, w.Close())
}

// Listening reports whether the listener is watching its file.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w != nil && l.w.IsWatching(l.path)
}
