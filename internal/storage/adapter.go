// Package storage implements the pluggable persistence layer behind a
// sync engine: a narrow key/value adapter interface plus two concrete
// backends, an in-memory store and a durable bbolt-backed store.
package storage

import "context"

// KV is one key/value pair returned by ScanPrefix.
type KV struct {
	Key   string
	Value []byte
}

// Adapter is the storage contract a sync engine depends on. Keys are
// opaque byte strings on the wire but are handled as strings here since
// every caller in this module already holds UTF-8 key material (user
// keys, whose tombstones are stored under the same key, and
// "queue::..." offline-queue keys).
type Adapter interface {
	// Init prepares the adapter for use (opening files, creating
	// buckets); it must be idempotent and callable before any other
	// method.
	Init(ctx context.Context) error

	// Get returns the stored value for key, or ok=false if absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any existing entry.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key if present; deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns every stored key/value pair whose key has
	// the given prefix, ordered lexicographically by key.
	ScanPrefix(ctx context.Context, prefix string) ([]KV, error)

	// ClearAll removes every entry the adapter holds.
	ClearAll(ctx context.Context) error

	// Close releases any resources held by the adapter. After Close,
	// the adapter must not be used again.
	Close() error
}
