package thread

import "testing"

func TestCallbackRegistryDeduplicatesByFDAndData(t *testing.T) {
	r := newCallbackRegistry()
	data := "marker"
	e1 := r.Add(3, CallbackRead, func(int, any) {}, data)
	e2 := r.Add(3, CallbackRead, func(int, any) {}, data)
	if e1 != e2 {
		t.Fatalf("expected re-adding the same (fd, data) pair to return the existing entry")
	}
	if len(r.entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(r.entries))
	}
}

func TestCallbackRegistryDistinctDataSameFD(t *testing.T) {
	r := newCallbackRegistry()
	r.Add(3, CallbackRead, func(int, any) {}, "a")
	r.Add(3, CallbackRead, func(int, any) {}, "b")
	if len(r.entries) != 2 {
		t.Fatalf("expected two distinct entries for the same fd with different data, got %d", len(r.entries))
	}
}

func TestCallbackRegistryRemove(t *testing.T) {
	r := newCallbackRegistry()
	r.Add(5, CallbackWrite, func(int, any) {}, nil)
	r.Remove(5)
	if len(r.entries) != 0 {
		t.Fatalf("expected entry removed, got %d remaining", len(r.entries))
	}
	r.Remove(5) // no-op on missing fd
}

func TestCallbackRegistrySetEnabled(t *testing.T) {
	r := newCallbackRegistry()
	e := r.Add(5, CallbackRead, func(int, any) {}, nil)
	r.SetEnabled(5, false)
	if e.enabled {
		t.Fatalf("expected entry disabled")
	}
	r.SetEnabled(5, true)
	if !e.enabled {
		t.Fatalf("expected entry re-enabled")
	}
}
