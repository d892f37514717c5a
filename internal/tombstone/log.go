// Package tombstone tracks deleted keys so a sync engine can wait out a
// stability window before reclaiming them, the same age-cutoff
// discipline this module uses elsewhere for bounding how long state is
// kept around before being dropped.
package tombstone

import (
	"sync"
	"time"

	"acp-sync/internal/hlc"
)

// Entry records when a key was deleted. Staleness is measured from the
// HLC physical time of the delete itself (matching the rest of this
// module's age comparisons), not from local receipt time, so a
// replayed or backdated tombstone ages exactly as the deleting peer
// intended.
type Entry struct {
	Key       string
	DeletedAt hlc.HLC
}

// Log tracks live tombstones until they clear a stability window, after
// which Compact can safely reclaim them without risking a late-arriving
// write resurrecting a value the rest of the network already dropped.
type Log struct {
	mu              sync.RWMutex
	entries         map[string]Entry
	stabilityWindow time.Duration
}

// NewLog creates a tombstone log with the given stability window.
func NewLog(stabilityWindow time.Duration) *Log {
	return &Log{
		entries:         make(map[string]Entry),
		stabilityWindow: stabilityWindow,
	}
}

// Record marks key as deleted at deletedAt. A later delete of the same
// key replaces the earlier record.
func (l *Log) Record(key string, deletedAt hlc.HLC) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = Entry{Key: key, DeletedAt: deletedAt}
}

// Forget removes key's tombstone bookkeeping, used when a later write
// resurrects the key before its stability window elapses.
func (l *Log) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// IsTombstoned reports whether key currently has a live tombstone.
func (l *Log) IsTombstoned(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[key]
	return ok
}

// Collectable returns the keys whose stability window has elapsed as of
// nowMs, and removes them from the log.
func (l *Log) Collectable(nowMs int64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := nowMs - l.stabilityWindow.Milliseconds()

	var ready []string
	for key, entry := range l.entries {
		if entry.DeletedAt.Physical <= cutoff {
			ready = append(ready, key)
			delete(l.entries, key)
		}
	}
	return ready
}

// Keys returns every key currently tracked as a live tombstone.
func (l *Log) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	return keys
}

// Size returns the current number of live tombstones.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
