package storage

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dshills/appshim/internal/storage/notify"
)

func TestSettings_SetGetRoundTrip(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))

	values := map[string]Value{
		"flag":  Bool(true),
		"small": Int16(-2),
		"count": Int32(42),
		"big":   Uint64(1 << 63),
		"ratio": Float32(0.75),
		"name":  String("appshim"),
		"when":  DateTime(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)),
		"blob":  Bytes([]byte{1, 2, 3}),
	}

	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	for k, want := range values {
		got, err := s.Get(k)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", k, err)
		}
		if !got.Equal(want) {
			t.Errorf("Get(%q) = %#v, want %#v", k, got, want)
		}
	}

	c, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n, known := c.Get(); !known || n != len(values) {
		t.Errorf("Count() = %v, want %d", c, len(values))
	}
}

func TestSettings_GetMissingIsNull(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))

	v, err := s.Get("missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !v.IsNull() {
		t.Errorf("Get(missing) = %#v, want Null", v)
	}
	if _, ok, _ := s.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported present")
	}
}

func TestSettings_NullWriteRemoves(t *testing.T) {
	b := newMemBackend(LocalityLocal)
	s := testSettings(b)

	if err := s.Set("k", String("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", Null()); err != nil {
		t.Fatalf("Set(Null) error = %v", err)
	}
	if ok, _ := s.ContainsKey("k"); ok {
		t.Error("key still present after Null write")
	}
	if err := s.SetAny("k", nil); err != nil {
		t.Errorf("SetAny(nil) on missing key error = %v", err)
	}
}

func TestSettings_RemoveIdempotent(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	_ = s.Set("k", Int32(1))

	removed, err := s.Remove("k")
	if err != nil || !removed {
		t.Fatalf("first Remove() = %v, %v", removed, err)
	}
	removed, err = s.Remove("k")
	if err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if removed {
		t.Error("second Remove() reported removal")
	}
}

func TestSettings_EmptyKey(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))

	checks := map[string]error{}
	_, checks["get"] = s.Get("")
	checks["set"] = s.Set("", Int32(1))
	_, checks["remove"] = s.Remove("")
	_, checks["containsKey"] = s.ContainsKey("")

	for op, err := range checks {
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s(\"\") error = %v, want ErrInvalidArgument", op, err)
		}
	}
}

func TestSettings_KeysAreNFC(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))

	// "é" as e + combining acute accent, and precomposed.
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	if err := s.Set(decomposed, String("x")); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ContainsKey(composed)
	if err != nil || !ok {
		t.Errorf("ContainsKey(composed) = %v, %v, want true", ok, err)
	}
	keys, _ := s.Keys()
	if !reflect.DeepEqual(keys, []string{composed}) {
		t.Errorf("Keys() = %q, want [%q]", keys, composed)
	}
}

func TestSettings_KindReplacement(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	_ = s.Set("k", Int32(5))
	_ = s.Set("k", String("five"))

	v, _ := s.Get("k")
	if v.Kind() != KindString {
		t.Errorf("kind = %v, want string", v.Kind())
	}
}

func TestSettings_ContainsEntry(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	_ = s.Set("k", Int32(5))

	tests := []struct {
		name string
		key  string
		v    Value
		want bool
	}{
		{"match", "k", Int32(5), true},
		{"other value", "k", Int32(6), false},
		{"other kind", "k", Int64(5), false},
		{"missing", "nope", Int32(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ContainsEntry(tt.key, tt.v)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ContainsEntry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettings_RangeSnapshotValues(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	_ = s.Set("b", Int32(2))
	_ = s.Set("a", Int32(1))
	_ = s.Set("c", Int32(3))

	var seen []string
	err := s.Range(func(k string, _ Value) bool {
		seen = append(seen, k)
		return k != "b"
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Errorf("Range visited %v, want [a b]", seen)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 3 || !snap["c"].Equal(Int32(3)) {
		t.Errorf("Snapshot() = %v", snap)
	}

	values, err := s.Values()
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 3 || !values[0].Equal(Int32(1)) {
		t.Errorf("Values() = %v", values)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	_ = s.Set("a", Int32(1))
	_ = s.Set("b", Int32(2))

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	c, _ := s.Count()
	if c != KnownCount(0) {
		t.Errorf("Count() after Clear = %v, want 0", c)
	}
}

func TestSettings_TypedGetters(t *testing.T) {
	s := testSettings(newMemBackend(LocalityLocal))
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.Set("s", String("x"))
	_ = s.Set("b", Bool(true))
	_ = s.Set("i", Int16(7))
	_ = s.Set("f", Float32(0.5))
	_ = s.Set("t", DateTime(when))

	if got, err := s.GetString("s"); err != nil || got != "x" {
		t.Errorf("GetString() = %q, %v", got, err)
	}
	if got, err := s.GetBool("b"); err != nil || !got {
		t.Errorf("GetBool() = %v, %v", got, err)
	}
	if got, err := s.GetInt64("i"); err != nil || got != 7 {
		t.Errorf("GetInt64() = %d, %v", got, err)
	}
	if got, err := s.GetFloat64("f"); err != nil || got != 0.5 {
		t.Errorf("GetFloat64() = %v, %v", got, err)
	}
	if got, err := s.GetTime("t"); err != nil || !got.Equal(when) {
		t.Errorf("GetTime() = %v, %v", got, err)
	}

	if _, err := s.GetBool("s"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetBool(string) error = %v, want ErrTypeMismatch", err)
	}
	if _, err := s.GetInt64("f"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetInt64(float) error = %v, want ErrTypeMismatch", err)
	}
	if _, err := s.GetString("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("GetString(missing) error = %v, want ErrKeyNotFound", err)
	}
}

func TestSettings_UnsupportedBackend(t *testing.T) {
	s := testSettings(refusingBackend{})

	errs := map[string]error{}
	_, errs["get"] = s.Get("k")
	errs["set"] = s.Set("k", Int32(1))
	_, errs["remove"] = s.Remove("k")
	_, errs["containsKey"] = s.ContainsKey("k")
	_, errs["keys"] = s.Keys()
	_, errs["count"] = s.Count()
	errs["clear"] = s.Clear()

	for op, err := range errs {
		if !errors.Is(err, ErrOperationNotSupported) {
			t.Errorf("%s error = %v, want ErrOperationNotSupported", op, err)
			continue
		}
		var opErr *OpError
		if !errors.As(err, &opErr) || opErr.Op != op || opErr.Backend != "refusing" {
			t.Errorf("%s error = %#v, want *OpError for op %s", op, err, op)
		}
	}
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []MapChange
}

func (r *changeRecorder) OnChange(c MapChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) snapshot() []MapChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MapChange(nil), r.changes...)
}

func TestSettings_ObserverLifecycle(t *testing.T) {
	b := newMemBackend(LocalityLocal)
	s := testSettings(b)
	first, second := &changeRecorder{}, &changeRecorder{}

	if s.Listening() {
		t.Fatal("listening before any observer")
	}
	if err := s.AddObserver(first); err != nil {
		t.Fatal(err)
	}
	if err := s.AddObserver(first); err != nil {
		t.Fatal(err)
	}
	if err := s.AddObserver(second); err != nil {
		t.Fatal(err)
	}
	if s.Observers() != 2 {
		t.Errorf("Observers() = %d, want 2", s.Observers())
	}
	if b.starts != 1 {
		t.Errorf("StartListening called %d times, want 1", b.starts)
	}

	_ = s.Set("k", Int32(1))
	_ = s.Set("k", Int32(2))
	_, _ = s.Remove("k")

	want := []MapChange{
		{Key: "k", Type: notify.ChangeInserted, Source: "mem"},
		{Key: "k", Type: notify.ChangeChanged, Source: "mem"},
		{Key: "k", Type: notify.ChangeRemoved, Source: "mem"},
	}
	if got := first.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("first observer got %v, want %v", got, want)
	}

	_ = s.RemoveObserver(first)
	if !s.Listening() {
		t.Error("stopped listening with an observer left")
	}
	_ = s.RemoveObserver(second)
	_ = s.RemoveObserver(second)
	if s.Listening() {
		t.Error("still listening after last observer removed")
	}
	if b.stops != 1 {
		t.Errorf("StopListening called %d times, want 1", b.stops)
	}

	_ = s.Set("k", Int32(3))
	if got := len(first.snapshot()); got != 3 {
		t.Errorf("removed observer received %d changes, want 3", got)
	}
}

func TestSettings_ObserverActivationFailure(t *testing.T) {
	b := newMemBackend(LocalityLocal)
	b.startErr = errors.New("boom")
	s := testSettings(b)

	err := s.AddObserver(&changeRecorder{})
	if err == nil {
		t.Fatal("AddObserver() succeeded despite listener failure")
	}
	if s.Observers() != 0 || s.Listening() {
		t.Errorf("observers = %d listening = %v after failure", s.Observers(), s.Listening())
	}
}

func TestSettings_ObserverWithoutChangeSource(t *testing.T) {
	s := testSettings(plainBackend{b: newMemBackend(LocalityLocal)})
	r := &changeRecorder{}

	if err := s.AddObserver(r); err != nil {
		t.Fatalf("AddObserver() error = %v", err)
	}
	_ = s.Set("k", Int32(1))
	if len(r.snapshot()) != 0 {
		t.Error("observer notified without a change source")
	}
}
