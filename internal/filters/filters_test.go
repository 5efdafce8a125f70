package filters

import (
	"errors"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/kv"
)

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore) {
	t.Helper()
	mem := kv.NewMemoryStore()
	return NewStore(mem, nil), mem
}

func TestStore_SaveAssignsDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	f, err := store.Save("groceries this month", Criteria{
		Kinds:  []core.TransactionKind{core.Expense},
		Search: "mercado",
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if f.ID == "" {
		t.Error("Save() did not assign an ID")
	}
	if f.UsageCount != 0 {
		t.Errorf("UsageCount = %d, want 0", f.UsageCount)
	}
	if f.CreatedAt.IsZero() || f.LastUsed.IsZero() {
		t.Error("Save() left timestamps unset")
	}
	if f.LastModified != nil {
		t.Error("Save() set LastModified on a fresh filter")
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 || list[0].ID != f.ID {
		t.Errorf("List() = %+v, want the one saved filter", list)
	}
}

func TestStore_UpdatePatchesAllowedFieldsOnly(t *testing.T) {
	store, _ := newTestStore(t)

	f, err := store.Save("old name", Criteria{Search: "a"})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := store.ApplyFilterUsage(f.ID); err != nil {
		t.Fatalf("ApplyFilterUsage() error: %v", err)
	}

	name := "new name"
	updated, err := store.Update(f.ID, Patch{Name: &name})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "new name" {
		t.Errorf("Name = %q, want new name", updated.Name)
	}
	if updated.Criteria.Search != "a" {
		t.Errorf("Criteria.Search = %q, want untouched", updated.Criteria.Search)
	}
	if updated.UsageCount != 1 {
		t.Errorf("UsageCount = %d after Update, want 1 (update must not touch usage)", updated.UsageCount)
	}
	if updated.LastModified == nil {
		t.Error("Update() did not stamp LastModified")
	}
}

func TestStore_UpdateUnknownID(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Update("nope", Patch{}); !errors.Is(err, ErrFilterNotFound) {
		t.Errorf("Update(unknown) error = %v, want ErrFilterNotFound", err)
	}
}

func TestStore_DeleteReportsRemoval(t *testing.T) {
	store, _ := newTestStore(t)

	f, _ := store.Save("to delete", Criteria{})
	store.Save("to keep", Criteria{})

	removed, err := store.Delete(f.ID)
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if !removed {
		t.Error("Delete(existing) = false, want true")
	}

	removed, err = store.Delete("nonexistent")
	if err != nil {
		t.Fatalf("Delete(unknown) error: %v", err)
	}
	if removed {
		t.Error("Delete(unknown) = true, want false")
	}

	list, _ := store.List()
	if len(list) != 1 {
		t.Errorf("List() length = %d after deletes, want 1", len(list))
	}
}

func TestStore_ApplyFilterUsage(t *testing.T) {
	store, _ := newTestStore(t)

	f, _ := store.Save("usage", Criteria{})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if _, err := store.ApplyFilterUsage(f.ID); err != nil {
			t.Fatalf("ApplyFilterUsage() error: %v", err)
		}
	}

	list, _ := store.List()
	if list[0].UsageCount != 3 {
		t.Errorf("UsageCount = %d, want 3", list[0].UsageCount)
	}
	if !list[0].LastUsed.Equal(base) {
		t.Errorf("LastUsed = %v, want %v", list[0].LastUsed, base)
	}

	if _, err := store.ApplyFilterUsage("nope"); !errors.Is(err, ErrFilterNotFound) {
		t.Errorf("ApplyFilterUsage(unknown) error = %v, want ErrFilterNotFound", err)
	}
}

func TestStore_CorruptBlobStartsEmpty(t *testing.T) {
	store, mem := newTestStore(t)

	mem.SetItem("saved_filters", []byte("{not json"))

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() over corrupt blob = %+v, want empty", list)
	}

	if _, err := store.Save("fresh", Criteria{}); err != nil {
		t.Fatalf("Save() after corruption error: %v", err)
	}
	list, _ = store.List()
	if len(list) != 1 {
		t.Errorf("List() after reinit = %d entries, want 1", len(list))
	}
}
