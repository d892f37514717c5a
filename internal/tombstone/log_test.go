package tombstone

import (
	"testing"
	"time"

	"acp-sync/internal/hlc"
)

func TestLog_RecordAndIsTombstoned(t *testing.T) {
	l := NewLog(5000 * time.Millisecond)
	l.Record("k1", hlc.HLC{Physical: 100})

	if !l.IsTombstoned("k1") {
		t.Error("expected k1 to be tombstoned")
	}
	if l.IsTombstoned("k2") {
		t.Error("expected k2 to not be tombstoned")
	}
}

func TestLog_CollectableAfterWindow(t *testing.T) {
	l := NewLog(5000 * time.Millisecond)
	l.Record("k1", hlc.HLC{Physical: 1000})

	if got := l.Collectable(4000); len(got) != 0 {
		t.Errorf("expected nothing collectable before window elapses, got %v", got)
	}
	if !l.IsTombstoned("k1") {
		t.Error("expected k1 to still be tombstoned")
	}

	got := l.Collectable(6001)
	if len(got) != 1 || got[0] != "k1" {
		t.Fatalf("expected [k1] collectable after window elapses, got %v", got)
	}
	if l.IsTombstoned("k1") {
		t.Error("expected k1 to be removed from the log once collected")
	}
}

func TestLog_Forget(t *testing.T) {
	l := NewLog(5000 * time.Millisecond)
	l.Record("k1", hlc.HLC{Physical: 1000})
	l.Forget("k1")

	if l.IsTombstoned("k1") {
		t.Error("expected k1 to be forgotten")
	}
	if got := l.Collectable(100000); len(got) != 0 {
		t.Errorf("expected forgotten key to never become collectable, got %v", got)
	}
}

func TestLog_Size(t *testing.T) {
	l := NewLog(5000 * time.Millisecond)
	l.Record("k1", hlc.HLC{})
	l.Record("k2", hlc.HLC{})

	if l.Size() != 2 {
		t.Errorf("expected size 2, got %d", l.Size())
	}
}

func TestLog_Keys(t *testing.T) {
	l := NewLog(5000 * time.Millisecond)
	l.Record("k1", hlc.HLC{Physical: 100})
	l.Record("k2", hlc.HLC{Physical: 200})

	keys := l.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}
