package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestBoltAdapter(t *testing.T) *BoltAdapter {
	t.Helper()
	ctx := context.Background()
	adapter := NewBoltAdapter(filepath.Join(t.TempDir(), "bolt_test.db"))
	if err := adapter.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestBoltAdapter_SetGet(t *testing.T) {
	ctx := context.Background()
	adapter := newTestBoltAdapter(t)

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

func TestBoltAdapter_Delete(t *testing.T) {
	ctx := context.Background()
	adapter := newTestBoltAdapter(t)

	adapter.Set(ctx, "foo", []byte("bar"))
	if err := adapter.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, ok, _ := adapter.Get(ctx, "foo")
	if ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestBoltAdapter_ScanPrefixIsLexicographicallyOrdered(t *testing.T) {
	ctx := context.Background()
	adapter := newTestBoltAdapter(t)

	unordered := []string{"queue::003::c", "queue::001::a", "queue::010::z", "queue::002::b"}
	for _, k := range unordered {
		if err := adapter.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	adapter.Set(ctx, "tomb::unrelated", []byte("x"))

	results, err := adapter.ScanPrefix(ctx, "queue::")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := []string{"queue::001::a", "queue::002::b", "queue::003::c", "queue::010::z"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, kv := range results {
		if kv.Key != want[i] {
			t.Fatalf("result %d: got key %q, want %q (full order: %v)", i, kv.Key, want[i], results)
		}
	}
}

func TestBoltAdapter_ClearAll(t *testing.T) {
	ctx := context.Background()
	adapter := newTestBoltAdapter(t)

	adapter.Set(ctx, "a", []byte("1"))
	adapter.Set(ctx, "b", []byte("2"))

	if err := adapter.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	results, err := adapter.ScanPrefix(ctx, "")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty store after clear, got %d entries", len(results))
	}
}
