package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "APPSHIM_"

// EnvLoader applies environment variable overrides to a Config.
type EnvLoader struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvLoader creates an environment loader for prefix, which should
// include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, lookup: os.LookupEnv}
}

// NewEnvLoaderWithLookup creates a loader reading variables through lookup.
func NewEnvLoaderWithLookup(prefix string, lookup func(string) (string, bool)) *EnvLoader {
	return &EnvLoader{prefix: prefix, lookup: lookup}
}

// envBinding maps one variable suffix onto a Config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"PLATFORM", func(c *Config, v string) error { c.Platform = v; return nil }},
	{"APP_ID", func(c *Config, v string) error { c.AppID = v; return nil }},
	{"DATA_DIR", func(c *Config, v string) error { c.DataDir = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"WATCH_ENABLED", func(c *Config, v string) error { return setBool(&c.Watch.Enabled, v) }},
	{"WATCH_DEBOUNCE", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Watch.Debounce = Duration(d)
		return nil
	}},
	{"ISOLATED_AUTO_SAVE", func(c *Config, v string) error { return setBool(&c.Isolated.AutoSave, v) }},
	{"STORE_APP_GUID", func(c *Config, v string) error { c.Store.AppGUID = v; return nil }},
	{"STORE_FAMILY_NAME", func(c *Config, v string) error { c.Store.FamilyName = v; return nil }},
	{"STORE_PRODUCT_ID", func(c *Config, v string) error { c.Store.ProductID = v; return nil }},
	{"STORE_ON_WINDOWS10", func(c *Config, v string) error { return setBool(&c.Store.OnWindows10, v) }},
}

// Apply overrides cfg with every set variable. Empty values are treated as
// set.
func (l *EnvLoader) Apply(cfg *Config) error {
	for _, b := range envBindings {
		name := l.prefix + b.name
		value, ok := l.lookup(name)
		if !ok {
			continue
		}
		if err := b.apply(cfg, strings.TrimSpace(value)); err != nil {
			return &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// Names returns the recognised variable names.
func (l *EnvLoader) Names() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = l.prefix + b.name
	}
	return names
}

func setBool(dst *bool, s string) error {
	switch strings.ToLower(s) {
	case "yes", "on":
		*dst = true
		return nil
	case "no", "off":
		*dst = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	*dst = b
	return nil
}
