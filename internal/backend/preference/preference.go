// Package preference is the settings backend for platforms with a generic
// preference API: a flat map of int, double, bool and string values.
//
// Other kinds are stored in their string form and read back as strings.
// Integers read back as Int32 when they fit and Int64 otherwise.
package preference

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/appshim/internal/backend/filestore"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/storage"
)

// Name is the backend name used in errors and logs.
const Name = "preference"

// FileName is the preference file name inside the data directory.
const FileName = "preference.yaml"

// Config configures the preference backend.
type Config struct {
	// DataDir is the application data directory.
	DataDir string
	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// Provider opens the application preference file for every locality.
type Provider struct {
	file   *filestore.File
	logger *logging.Logger
}

// New creates a provider for cfg.
func New(cfg Config) *Provider {
	return &Provider{
		file:   filestore.NewFile(filepath.Join(cfg.DataDir, FileName)),
		logger: logging.OrNull(cfg.Logger).WithComponent(Name),
	}
}

// Open implements storage.Provider.
func (p *Provider) Open(locality storage.Locality) (storage.Backend, error) {
	return &Backend{file: p.file, locality: locality, logger: p.logger}, nil
}

// Backend is the preference file seen from one locality.
type Backend struct {
	file     *filestore.File
	locality storage.Locality
	logger   *logging.Logger
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return Name }

// Locality implements storage.Backend.
func (b *Backend) Locality() storage.Locality { return b.locality }

func (b *Backend) load() (map[string]any, error) {
	data, err := b.file.Read()
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (b *Backend) update(fn func(prefs map[string]any) bool) error {
	return b.file.Update(func(data []byte) ([]byte, error) {
		prefs, err := decode(data)
		if err != nil {
			return nil, err
		}
		if !fn(prefs) {
			return nil, nil
		}
		return encode(prefs)
	})
}

// Get implements storage.Backend.
func (b *Backend) Get(key string) (storage.Value, bool, error) {
	prefs, err := b.load()
	if err != nil {
		return storage.Null(), false, err
	}
	raw, ok := prefs[key]
	if !ok {
		return storage.Null(), false, nil
	}
	v, err := toValue(raw)
	if err != nil {
		return storage.Null(), false, fmt.Errorf("preference %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements storage.Backend.
func (b *Backend) Set(key string, v storage.Value) error {
	raw := fromValue(v)
	return b.update(func(prefs map[string]any) bool {
		prefs[key] = raw
		return true
	})
}

// Remove implements storage.Backend.
func (b *Backend) Remove(key string) (bool, error) {
	var removed bool
	err := b.update(func(prefs map[string]any) bool {
		_, removed = prefs[key]
		delete(prefs, key)
		return removed
	})
	return removed, err
}

// Contains implements storage.Backend.
func (b *Backend) Contains(key string) (bool, error) {
	prefs, err := b.load()
	if err != nil {
		return false, err
	}
	_, ok := prefs[key]
	return ok, nil
}

// Keys implements storage.Backend.
func (b *Backend) Keys() ([]string, error) {
	prefs, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count implements storage.Backend by counting the keys.
func (b *Backend) Count() (storage.Count, error) {
	keys, err := b.Keys()
	if err != nil {
		return storage.UnknownCount, err
	}
	return storage.KnownCount(len(keys)), nil
}

// Clear implements storage.Backend.
func (b *Backend) Clear() error {
	return b.update(func(prefs map[string]any) bool {
		if len(prefs) == 0 {
			return false
		}
		clear(prefs)
		return true
	})
}

func decode(data []byte) (map[string]any, error) {
	prefs := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return prefs, nil
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}
	return prefs, nil
}

func encode(prefs map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	out := make(map[string]any, len(prefs))
	for k, v := range prefs {
		if f, ok := v.(float64); ok {
			out[k] = floatNode(f)
			continue
		}
		out[k] = v
	}
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// floatNode renders f so it reads back as a float. The default encoding
// writes 1.0 as "1", which decodes as an int.
func floatNode(f float64) *yaml.Node {
	var text string
	switch {
	case math.IsInf(f, 1):
		text = ".inf"
	case math.IsInf(f, -1):
		text = "-.inf"
	case math.IsNaN(f):
		text = ".nan"
	default:
		text = strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eEn") {
			text += ".0"
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}
}

// fromValue maps v onto the preference API's native types.
func fromValue(v storage.Value) any {
	switch v.Kind() {
	case storage.KindBool:
		b, _ := v.AsBool()
		return b
	case storage.KindInt16, storage.KindInt32, storage.KindInt64:
		i, _ := v.AsInt64()
		return i
	case storage.KindUint16, storage.KindUint32:
		u, _ := v.AsUint64()
		return int64(u)
	case storage.KindFloat32, storage.KindFloat64:
		f, _ := v.AsFloat64()
		return f
	default:
		return v.String()
	}
}

func toValue(raw any) (storage.Value, error) {
	switch x := raw.(type) {
	case bool:
		return storage.Bool(x), nil
	case int:
		return narrow(int64(x)), nil
	case int64:
		return narrow(x), nil
	case uint64:
		return storage.Uint64(x), nil
	case float64:
		return storage.Float64(x), nil
	case string:
		return storage.String(x), nil
	case nil:
		return storage.Null(), fmt.Errorf("%w: null preference", storage.ErrTypeMismatch)
	default:
		return storage.String(fmt.Sprint(x)), nil
	}
}

func narrow(i int64) storage.Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return storage.Int32(int32(i))
	}
	return storage.Int64(i)
}
