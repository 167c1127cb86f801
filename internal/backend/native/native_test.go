package native

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/storage/notify"
)

func open(t *testing.T, s *Store, loc storage.Locality) *Backend {
	t.Helper()
	b, err := s.Open(loc)
	if err != nil {
		t.Fatalf("Open(%v) error = %v", loc, err)
	}
	return b.(*Backend)
}

func TestBackend_RoundTripsEveryKind(t *testing.T) {
	b := open(t, New(nil), storage.LocalityLocal)

	values := []storage.Value{
		storage.Bool(true),
		storage.Int16(-1),
		storage.Int32(1 << 30),
		storage.Int64(-1 << 62),
		storage.Uint16(9),
		storage.Uint32(1 << 31),
		storage.Uint64(1 << 63),
		storage.Float32(1.1),
		storage.Float64(2.2),
		storage.String("s"),
		storage.DateTime(time.Date(2026, 10, 16, 1, 2, 3, 4, time.FixedZone("", 5*3600))),
		storage.GUID(uuid.New()),
		storage.Bytes([]byte("raw")),
	}

	for _, v := range values {
		key := v.Kind().String()
		if err := b.Set(key, v); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
		got, ok, err := b.Get(key)
		if err != nil || !ok {
			t.Fatalf("Get(%s) = %v, %v", key, ok, err)
		}
		if !got.Equal(v) {
			t.Errorf("Get(%s) = %#v, want %#v", key, got, v)
		}
	}

	c, _ := b.Count()
	if c != storage.KnownCount(len(values)) {
		t.Errorf("Count() = %v, want %d", c, len(values))
	}
}

func TestStore_LocalitiesAreIndependent(t *testing.T) {
	s := New(nil)
	local := open(t, s, storage.LocalityLocal)
	roaming := open(t, s, storage.LocalityRoaming)

	_ = local.Set("k", storage.Int32(1))
	if ok, _ := roaming.Contains("k"); ok {
		t.Error("local write visible in roaming")
	}

	again := open(t, s, storage.LocalityLocal)
	if ok, _ := again.Contains("k"); !ok {
		t.Error("reopened local root lost data")
	}

	if _, err := s.Open(storage.Locality(42)); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("Open(42) error = %v, want ErrInvalidArgument", err)
	}
}

func TestBackend_CreateContainer(t *testing.T) {
	root := open(t, New(nil), storage.LocalityLocal)

	if _, err := root.CreateContainer("a", storage.DispositionExisting); !errors.Is(err, storage.ErrContainerNotFound) {
		t.Fatalf("Existing error = %v, want ErrContainerNotFound", err)
	}

	a, err := root.CreateContainer("a", storage.DispositionAlways)
	if err != nil {
		t.Fatal(err)
	}
	_ = a.Set("k", storage.String("v"))

	again, err := root.CreateContainer("a", storage.DispositionExisting)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := again.Get("k"); !ok || !v.Equal(storage.String("v")) {
		t.Errorf("reopened child Get = %#v, %v", v, ok)
	}

	nested, err := a.(*Backend).CreateContainer("a", storage.DispositionAlways)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := nested.Contains("k"); ok {
		t.Error("nested container with parent's name shares its values")
	}

	if removed, _ := root.DeleteContainer("a"); !removed {
		t.Error("DeleteContainer(a) = false")
	}
	if _, err := root.CreateContainer("a", storage.DispositionExisting); !errors.Is(err, storage.ErrContainerNotFound) {
		t.Errorf("after delete error = %v, want ErrContainerNotFound", err)
	}
}

func TestBackend_ChangeEvents(t *testing.T) {
	s := New(nil)
	writer := open(t, s, storage.LocalityLocal)
	reader := open(t, s, storage.LocalityLocal)

	var got []notify.Change
	if err := reader.StartListening(func(c notify.Change) { got = append(got, c) }); err != nil {
		t.Fatal(err)
	}

	_ = writer.Set("k", storage.Int32(1))
	_ = writer.Set("k", storage.Int32(2))
	_, _ = writer.Remove("k")
	_, _ = writer.Remove("k")
	_ = writer.Set("x", storage.Int32(1))
	_ = writer.Clear()

	want := []notify.Change{
		{Key: "k", Type: notify.ChangeInserted, Source: Name},
		{Key: "k", Type: notify.ChangeChanged, Source: Name},
		{Key: "k", Type: notify.ChangeRemoved, Source: Name},
		{Key: "x", Type: notify.ChangeInserted, Source: Name},
		{Type: notify.ChangeReset, Source: Name},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %v, want %v", got, want)
	}

	_ = reader.StopListening()
	_ = writer.Set("y", storage.Int32(1))
	if len(got) != len(want) {
		t.Error("change delivered after StopListening")
	}
}

func TestBackend_ThroughFacade(t *testing.T) {
	data := storage.New(New(nil))
	defer data.Close()

	roaming, err := data.RoamingSettings()
	if err != nil {
		t.Fatal(err)
	}
	child, err := roaming.CreateContainer("profile", storage.DispositionAlways)
	if err != nil {
		t.Fatal(err)
	}

	changes := make(chan storage.MapChange, 4)
	obs := storage.ObserverFunc(func(c storage.MapChange) { changes <- c })
	if err := child.Values().AddObserver(obs); err != nil {
		t.Fatal(err)
	}

	if err := child.Values().Set("name", storage.String("ada")); err != nil {
		t.Fatal(err)
	}
	if err := child.Values().Set("name", storage.Null()); err != nil {
		t.Fatal(err)
	}

	for _, want := range []notify.ChangeType{notify.ChangeInserted, notify.ChangeRemoved} {
		select {
		case c := <-changes:
			if c.Type != want || c.Key != "name" {
				t.Errorf("change = %v, want %v name", c, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "native", "app.toml")
	when := time.Date(2026, 10, 16, 8, 0, 0, 0, time.FixedZone("", -7*3600))

	s := New(nil, WithFile(path))
	local := open(t, s, storage.LocalityLocal)
	_ = local.Set("volume", storage.Int32(7))
	_ = local.Set("ratio", storage.Float64(1))
	_ = local.Set("seen", storage.DateTime(when))
	profile, err := local.CreateContainer("profile", storage.DispositionAlways)
	if err != nil {
		t.Fatal(err)
	}
	_ = profile.Set("name", storage.String("ada"))
	_ = open(t, s, storage.LocalityRoaming).Set("theme", storage.String("dark"))
	_ = open(t, s, storage.LocalityTemporary).Set("scratch", storage.Bool(true))

	if err := local.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reloaded := New(nil, WithFile(path))
	rl := open(t, reloaded, storage.LocalityLocal)
	tests := []struct {
		key  string
		want storage.Value
	}{
		{"volume", storage.Int32(7)},
		{"ratio", storage.Float64(1)},
		{"seen", storage.DateTime(when)},
	}
	for _, tt := range tests {
		got, ok, _ := rl.Get(tt.key)
		if !ok || !got.Equal(tt.want) {
			t.Errorf("reloaded Get(%s) = %#v, %v, want %#v", tt.key, got, ok, tt.want)
		}
	}

	child, err := rl.CreateContainer("profile", storage.DispositionExisting)
	if err != nil {
		t.Fatalf("reloaded child error = %v", err)
	}
	if v, _, _ := child.Get("name"); !v.Equal(storage.String("ada")) {
		t.Errorf("reloaded child Get(name) = %#v", v)
	}
	if v, _, _ := open(t, reloaded, storage.LocalityRoaming).Get("theme"); !v.Equal(storage.String("dark")) {
		t.Errorf("reloaded roaming Get(theme) = %#v", v)
	}
	if ok, _ := open(t, reloaded, storage.LocalityTemporary).Contains("scratch"); ok {
		t.Error("temporary data was persisted")
	}
}

func TestStore_SaveOnlyWhenDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	s := New(nil, WithFile(path))
	b := open(t, s, storage.LocalityTemporary)
	_ = b.Set("k", storage.Int32(1))

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temporary-only change wrote the file: %v", err)
	}

	if err := New(nil).Save(); err != nil {
		t.Errorf("memory-only Save() error = %v", err)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	if err := os.WriteFile(path, []byte("localities = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(nil, WithFile(path)).Open(storage.LocalityLocal); err == nil {
		t.Error("Open() on corrupt file succeeded")
	}
}
