package storage

import (
	"context"
	"testing"
)

func TestMemoryAdapter_SetGet(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	if err := adapter.Set(ctx, "foo", []byte("bar")); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := adapter.Get(ctx, "foo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to be found")
	}
	if string(value) != "bar" {
		t.Errorf("expected bar, got %s", value)
	}
}

func TestMemoryAdapter_GetMissing(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	_, ok, err := adapter.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected missing key to not be found")
	}
}

func TestMemoryAdapter_Delete(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	adapter.Set(ctx, "foo", []byte("bar"))
	if err := adapter.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, ok, _ := adapter.Get(ctx, "foo")
	if ok {
		t.Error("expected key to be gone after delete")
	}

	// deleting an absent key is not an error
	if err := adapter.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("expected no error deleting absent key, got %v", err)
	}
}

func TestMemoryAdapter_ScanPrefix(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	adapter.Set(ctx, "queue::001::a", []byte("1"))
	adapter.Set(ctx, "queue::002::b", []byte("2"))
	adapter.Set(ctx, "tomb::c", []byte("3"))

	results, err := adapter.ScanPrefix(ctx, "queue::")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Key != "queue::001::a" || string(results[0].Value) != "1" {
		t.Errorf("missing or wrong value for queue::001::a, got %+v", results[0])
	}
}

func TestMemoryAdapter_ScanPrefixIsLexicographicallyOrdered(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	unordered := []string{"queue::003::c", "queue::001::a", "queue::010::z", "queue::002::b"}
	for _, k := range unordered {
		adapter.Set(ctx, k, []byte(k))
	}

	results, err := adapter.ScanPrefix(ctx, "queue::")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != len(unordered) {
		t.Fatalf("expected %d results, got %d", len(unordered), len(results))
	}

	want := []string{"queue::001::a", "queue::002::b", "queue::003::c", "queue::010::z"}
	for i, kv := range results {
		if kv.Key != want[i] {
			t.Fatalf("result %d: got key %q, want %q (full order: %v)", i, kv.Key, want[i], results)
		}
	}
}

func TestMemoryAdapter_ClearAll(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	adapter.Set(ctx, "a", []byte("1"))
	adapter.Set(ctx, "b", []byte("2"))

	if err := adapter.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	results, _ := adapter.ScanPrefix(ctx, "")
	if len(results) != 0 {
		t.Errorf("expected empty store after clear, got %d entries", len(results))
	}
}

func TestMemoryAdapter_SetIsolatesCallerBuffer(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	buf := []byte("original")
	adapter.Set(ctx, "k", buf)
	buf[0] = 'X'

	value, _, _ := adapter.Get(ctx, "k")
	if string(value) != "original" {
		t.Error("expected adapter to copy the value rather than alias the caller's buffer")
	}
}

var _ Adapter = (*MemoryAdapter)(nil)
var _ Adapter = (*BoltAdapter)(nil)
