package kv

import (
	"errors"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	if _, err := store.GetItem("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.SetItem("financial_memories", []byte(`{"version":"1.0"}`)); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}

	got, err := store.GetItem("financial_memories")
	if err != nil {
		t.Fatalf("GetItem() error: %v", err)
	}
	if string(got) != `{"version":"1.0"}` {
		t.Errorf("GetItem() = %q", got)
	}

	if err := store.SetItem("financial_memories", []byte(`{"version":"2.0"}`)); err != nil {
		t.Fatalf("SetItem() overwrite error: %v", err)
	}
	got, _ = store.GetItem("financial_memories")
	if string(got) != `{"version":"2.0"}` {
		t.Errorf("GetItem() after overwrite = %q", got)
	}

	if err := store.RemoveItem("financial_memories"); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if _, err := store.GetItem("financial_memories"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem() after remove error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_RejectsPathEscapes(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	for _, key := range []string{"../escape", "a/b", "", "sp ace"} {
		if err := store.SetItem(key, []byte("x")); err == nil {
			t.Errorf("SetItem(%q) expected error, got nil", key)
		}
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()

	in := []byte(`{"a":1}`)
	if err := store.SetItem("k", in); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}
	in[0] = 'x'

	got, err := store.GetItem("k")
	if err != nil {
		t.Fatalf("GetItem() error: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("GetItem() = %q, want stored value unaffected by caller mutation", got)
	}

	got[0] = 'y'
	again, _ := store.GetItem("k")
	if string(again) != `{"a":1}` {
		t.Errorf("GetItem() second read = %q, want stored value unaffected", again)
	}
}
