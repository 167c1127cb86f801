package notify

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingHooks struct {
	activations   atomic.Int32
	deactivations atomic.Int32
}

func (h *countingHooks) options() Option {
	return WithActivation(
		func() error { h.activations.Add(1); return nil },
		func() error { h.deactivations.Add(1); return nil },
	)
}

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeReset, "reset"},
		{ChangeInserted, "inserted"},
		{ChangeRemoved, "removed"},
		{ChangeChanged, "changed"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_DeliversToObservers(t *testing.T) {
	n := New()
	defer n.Close()

	var got []Change
	obs := Func(func(c Change) { got = append(got, c) })
	if err := n.Add(obs); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	n.Notify(Change{Key: "theme", Type: ChangeChanged})
	n.Notify(Change{Type: ChangeReset, Source: "test"})

	if len(got) != 2 {
		t.Fatalf("received %d changes, want 2", len(got))
	}
	if got[0].Key != "theme" || got[0].Type != ChangeChanged {
		t.Errorf("first change = %+v", got[0])
	}
	if got[1].Type != ChangeReset || got[1].Source != "test" {
		t.Errorf("second change = %+v", got[1])
	}
}

func TestNotifier_ActivationLifecycle(t *testing.T) {
	var hooks countingHooks
	n := New(hooks.options())
	defer n.Close()

	a := Func(func(Change) {})
	b := Func(func(Change) {})

	_ = n.Add(a)
	_ = n.Add(a) // same identity: no second registration
	_ = n.Add(b)

	if got := hooks.activations.Load(); got != 1 {
		t.Errorf("activations = %d, want 1", got)
	}
	if n.Len() != 2 {
		t.Errorf("Len() = %d, want 2", n.Len())
	}
	if !n.Active() {
		t.Error("expected notifier to be active")
	}

	_ = n.Remove(a)
	if got := hooks.deactivations.Load(); got != 0 {
		t.Errorf("deactivated with an observer still registered")
	}
	_ = n.Remove(b)
	_ = n.Remove(b)

	if got := hooks.deactivations.Load(); got != 1 {
		t.Errorf("deactivations = %d, want 1", got)
	}
	if n.Active() {
		t.Error("expected notifier to be inactive")
	}

	// Re-registering reactivates.
	_ = n.Add(b)
	if got := hooks.activations.Load(); got != 2 {
		t.Errorf("activations after re-add = %d, want 2", got)
	}
}

func TestNotifier_ActivationFailure(t *testing.T) {
	boom := errors.New("listener unavailable")
	n := New(WithActivation(func() error { return boom }, nil))
	defer n.Close()

	err := n.Add(Func(func(Change) {}))
	if !errors.Is(err, boom) {
		t.Fatalf("Add() error = %v, want %v", err, boom)
	}
	if n.Len() != 0 {
		t.Errorf("Len() = %d after failed activation, want 0", n.Len())
	}
	if n.Active() {
		t.Error("notifier active after failed activation")
	}
}

type valueObserver struct{ hits *int }

func (v valueObserver) OnChange(Change) { *v.hits++ }

type sliceObserver []int

func (sliceObserver) OnChange(Change) {}

func TestNotifier_ObserverIdentity(t *testing.T) {
	n := New()
	defer n.Close()

	if err := n.Add(nil); !errors.Is(err, ErrNotComparable) {
		t.Errorf("Add(nil) error = %v, want ErrNotComparable", err)
	}
	if err := n.Add(sliceObserver{1}); !errors.Is(err, ErrNotComparable) {
		t.Errorf("Add(slice) error = %v, want ErrNotComparable", err)
	}

	hits := 0
	obs := valueObserver{hits: &hits}
	_ = n.Add(obs)
	_ = n.Add(valueObserver{hits: &hits}) // equal value, same identity

	n.Notify(Change{Type: ChangeReset})
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestNotifier_RemovedObserverNotCalled(t *testing.T) {
	n := New()
	defer n.Close()

	var calls atomic.Int32
	obs := Func(func(Change) { calls.Add(1) })
	_ = n.Add(obs)
	_ = n.Remove(obs)

	n.Notify(Change{Type: ChangeReset})
	if calls.Load() != 0 {
		t.Error("removed observer received notification")
	}
}

func TestNotifier_PanickingObserver(t *testing.T) {
	n := New()
	defer n.Close()

	var called atomic.Bool
	_ = n.Add(Func(func(Change) { panic("boom") }))
	_ = n.Add(Func(func(Change) { called.Store(true) }))

	n.Notify(Change{Type: ChangeReset})
	if !called.Load() {
		t.Error("observer after panicking observer was not called")
	}
}

func TestNotifier_Async(t *testing.T) {
	n := New(WithAsync(16))

	var wg sync.WaitGroup
	wg.Add(3)
	var calls atomic.Int32
	_ = n.Add(Func(func(Change) {
		calls.Add(1)
		wg.Done()
	}))

	for i := 0; i < 3; i++ {
		n.Notify(Change{Type: ChangeReset})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}

	n.Close()
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNotifier_CloseIdempotent(t *testing.T) {
	n := New(WithAsync(4))
	n.Close()
	n.Close()

	// Notify after close is dropped without blocking.
	n.Notify(Change{Type: ChangeReset})
}

func TestNotifier_ConcurrentAddRemove(t *testing.T) {
	var hooks countingHooks
	n := New(hooks.options())
	defer n.Close()

	obs := Func(func(Change) {})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = n.Add(obs) }()
		go func() { defer wg.Done(); _ = n.Remove(obs) }()
	}
	wg.Wait()
	_ = n.Remove(obs)

	if hooks.activations.Load() != hooks.deactivations.Load() {
		t.Errorf("activations %d != deactivations %d",
			hooks.activations.Load(), hooks.deactivations.Load())
	}
}
