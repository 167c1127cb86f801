// Package platform selects the settings backend for a platform identifier.
package platform

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/appshim/internal/backend/defaults"
	"github.com/dshills/appshim/internal/backend/isolated"
	"github.com/dshills/appshim/internal/backend/native"
	"github.com/dshills/appshim/internal/backend/preference"
	"github.com/dshills/appshim/internal/backend/prefs"
	"github.com/dshills/appshim/internal/backend/unsupported"
	"github.com/dshills/appshim/internal/config"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
)

// ID is a platform identifier.
type ID string

// Known platform identifiers.
const (
	UWP          ID = "uwp"
	Windows      ID = "windows"
	Android      ID = "android"
	WindowsPhone ID = "windowsphone"
	Silverlight  ID = "silverlight"
	IOS          ID = "ios"
	TVOS         ID = "tvos"
	Tizen        ID = "tizen"
	Win32        ID = "win32"
)

// Normalize lower-cases and trims an identifier.
func Normalize(s string) ID {
	return ID(strings.ToLower(strings.TrimSpace(s)))
}

// factory builds the provider for one family of platforms.
type factory func(cfg *config.Config, logger *logging.Logger) storage.Provider

var factories = map[ID]factory{
	UWP:          newNative,
	Windows:      newNative,
	Android:      newPrefs,
	WindowsPhone: newNative,
	Silverlight:  newIsolated,
	IOS:          newDefaults,
	TVOS:         newTVOS,
	Tizen:        newPreference,
}

// IDs returns the identifiers with a settings backend, sorted.
func IDs() []ID {
	ids := make([]ID, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Supported reports whether id has a settings backend.
func Supported(id ID) bool {
	_, ok := factories[Normalize(string(id))]
	return ok
}

// Provider returns the settings provider for cfg.Platform. Identifiers
// without a backend, including win32, get a provider whose every operation
// fails with storage.ErrOperationNotSupported.
func Provider(cfg *config.Config, logger *logging.Logger) storage.Provider {
	logger = logging.OrNull(logger)
	id := Normalize(cfg.Platform)

	f, ok := factories[id]
	if !ok {
		logger.Warn("no settings backend for platform %q", cfg.Platform)
		return unsupported.Provider{Platform: string(id)}
	}
	return f(cfg, logger)
}

// Open returns an AppData over the provider for cfg.
func Open(cfg *config.Config, logger *logging.Logger, opts ...storage.Option) *storage.AppData {
	logger = logging.OrNull(logger)
	opts = append([]storage.Option{storage.WithLogger(logger)}, opts...)
	return storage.New(Provider(cfg, logger), opts...)
}

func newNative(cfg *config.Config, logger *logging.Logger) storage.Provider {
	return native.New(logger, native.WithFile(NativePath(cfg)))
}

// NativePath returns the file the native backend persists to.
func NativePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "native", cfg.AppID+".toml")
}

func newPrefs(cfg *config.Config, logger *logging.Logger) storage.Provider {
	return prefs.New(prefs.Config{
		DataDir:  cfg.DataDir,
		AppID:    cfg.AppID,
		Watch:    cfg.Watch.Enabled,
		Debounce: cfg.Watch.Debounce.Std(),
		Logger:   logger,
	})
}

func newIsolated(cfg *config.Config, logger *logging.Logger) storage.Provider {
	return isolated.New(isolated.Config{
		DataDir:  cfg.DataDir,
		AutoSave: cfg.Isolated.AutoSave,
		Logger:   logger,
	})
}

func newDefaults(cfg *config.Config, logger *logging.Logger) storage.Provider {
	return defaults.New(defaultsConfig(cfg, logger))
}

// newTVOS is the defaults backend without suites.
func newTVOS(cfg *config.Config, logger *logging.Logger) storage.Provider {
	dc := defaultsConfig(cfg, logger)
	dc.NoSuites = true
	return defaults.New(dc)
}

func defaultsConfig(cfg *config.Config, logger *logging.Logger) defaults.Config {
	return defaults.Config{
		DataDir:  cfg.DataDir,
		AppID:    cfg.AppID,
		Watch:    cfg.Watch.Enabled,
		Debounce: cfg.Watch.Debounce.Std(),
		Logger:   logger,
	}
}

func newPreference(cfg *config.Config, logger *logging.Logger) storage.Provider {
	return preference.New(preference.Config{
		DataDir: cfg.DataDir,
		Logger:  logger,
	})
}
