// Package storage provides a uniform application settings API over the
// native key/value stores of several platforms.
//
// Application code sees one shape everywhere: an AppData hands out root
// Containers per Locality, each Container owns a Settings map of typed
// Values, and observers can subscribe to map changes. Each platform plugs
// in a Backend that translates those operations into its native store.
//
// # Architecture
//
//	┌───────────────────────────────┐
//	│  AppData                      │  ← one root per locality
//	├───────────────────────────────┤
//	│  Container / Settings         │  ← key normalisation, null-as-delete,
//	│                               │    observer bookkeeping
//	├───────────────────────────────┤
//	│  Backend                      │  ← native store adapter
//	└───────────────────────────────┘
//
// Backends advertise optional capabilities by implementing extra
// interfaces: ChangeSource for change detection, Nester for child
// containers, Flusher for deferred persistence and io.Closer for resource
// release. Operations a backend cannot perform fail with an error
// wrapping ErrOperationNotSupported.
//
// # Sub-packages
//
//   - notify: observer list with lazy listener activation
//   - watcher: debounced file watching for file-backed stores
//   - codec: the legacy tagged-pair value encoding
//   - filelock: cross-process locking and atomic file replacement
//
// # Basic Usage
//
//	data := storage.New(provider, storage.WithLogger(logger))
//	defer data.Close()
//
//	local, err := data.LocalSettings()
//	if err != nil {
//	    return err
//	}
//	if err := local.Values().Set("theme", storage.String("dark")); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// AppData and Container are safe for concurrent use. Settings delegates
// concurrency to its backend; every backend in this module serialises its
// own access.
package storage
