// Package config provides the configuration for appshim.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← APPSHIM_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← TOML or YAML
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/appshim/internal/logging"
)

// Config is the complete application configuration.
type Config struct {
	// Platform selects the settings backend, e.g. "uwp" or "android".
	Platform string `toml:"platform" yaml:"platform"`
	// AppID identifies the application to its settings store.
	AppID string `toml:"app_id" yaml:"app_id"`
	// DataDir is the root directory of file-backed stores.
	DataDir string `toml:"data_dir" yaml:"data_dir"`

	Log      LogConfig      `toml:"log" yaml:"log"`
	Watch    WatchConfig    `toml:"watch" yaml:"watch"`
	Isolated IsolatedConfig `toml:"isolated" yaml:"isolated"`
	Store    StoreConfig    `toml:"store" yaml:"store"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
}

// WatchConfig configures change listening on file-backed stores.
type WatchConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

// IsolatedConfig configures the isolated settings backend.
type IsolatedConfig struct {
	// AutoSave persists after every write instead of on flush.
	AutoSave bool `toml:"auto_save" yaml:"auto_save"`
}

// StoreConfig identifies the application in its platform store.
type StoreConfig struct {
	// AppGUID is the store application identifier.
	AppGUID string `toml:"app_guid" yaml:"app_guid"`
	// FamilyName is the package family name.
	FamilyName string `toml:"family_name" yaml:"family_name"`
	// ProductID is the store product identifier.
	ProductID string `toml:"product_id" yaml:"product_id"`
	// OnWindows10 selects the newer store URI forms on phone platforms.
	OnWindows10 bool `toml:"on_windows10" yaml:"on_windows10"`
}

// Duration is a time.Duration read from strings such as "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Platform: "uwp",
		AppID:    "appshim",
		DataDir:  defaultDataDir(),
		Log:      LogConfig{Level: "info"},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: Duration(100 * time.Millisecond),
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "appshim")
	}
	return filepath.Join(os.TempDir(), "appshim")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Platform) == "" {
		return &ValidationError{Path: "platform", Message: "must not be empty", Value: c.Platform}
	}
	if strings.TrimSpace(c.AppID) == "" {
		return &ValidationError{Path: "app_id", Message: "must not be empty", Value: c.AppID}
	}
	if strings.ContainsAny(c.AppID, `/\`) {
		return &ValidationError{Path: "app_id", Message: "must not contain path separators", Value: c.AppID}
	}
	if c.DataDir == "" {
		return &ValidationError{Path: "data_dir", Message: "must not be empty", Value: c.DataDir}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log.level", Message: "must be debug, info, warn or error", Value: c.Log.Level}
	}
	if c.Watch.Debounce < 0 {
		return &ValidationError{Path: "watch.debounce", Message: "must not be negative", Value: c.Watch.Debounce.Std()}
	}
	if c.Store.AppGUID != "" {
		if _, err := uuid.Parse(c.Store.AppGUID); err != nil {
			return &ValidationError{Path: "store.app_guid", Message: "must be a GUID", Value: c.Store.AppGUID}
		}
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

// String returns a one-line summary for diagnostics.
func (c *Config) String() string {
	return fmt.Sprintf("platform=%s app_id=%s data_dir=%s", c.Platform, c.AppID, c.DataDir)
}
