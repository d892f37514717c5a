package causal

import "sync"

// Entry is a single buffered operation: its own dependency hash (so
// later arrivals can discover they were waiting on it), the hashes of
// the operations it depends on, and an opaque payload the caller
// supplies and gets back once the entry is deliverable.
type Entry struct {
	Hash    []byte
	Deps    [][]byte
	Payload any
}

// Buffer gates delivery of operations until every dependency they
// declare has already been observed, generalizing the bounded
// circular-buffer discipline of this module's write log to a
// dependency graph instead of a simple age cutoff.
type Buffer struct {
	mu         sync.Mutex
	received   map[string]struct{}
	pending    []Entry
	maxPending int
}

// NewBuffer creates a causal buffer that holds at most maxPending
// operations awaiting their dependencies before it starts evicting the
// oldest ones and requesting a resync.
func NewBuffer(maxPending int) *Buffer {
	return &Buffer{
		received:   make(map[string]struct{}),
		maxPending: maxPending,
	}
}

// Deliver admits e into the buffer and drains every entry (including
// ones admitted earlier) whose dependencies are now satisfied, in the
// order they become deliverable. resyncRequested reports whether the
// buffer had to evict an undeliverable entry to stay within its cap,
// meaning the caller should treat its view of this peer as gapped and
// request a fresh sync.
func (b *Buffer) Deliver(e Entry) (ready []any, resyncRequested bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := string(e.Hash)
	if _, seen := b.received[key]; seen {
		return nil, false
	}

	b.pending = append(b.pending, e)

	for {
		progressed := false
		remaining := b.pending[:0:0]

		for _, entry := range b.pending {
			if b.allDepsSatisfied(entry.Deps) {
				b.received[string(entry.Hash)] = struct{}{}
				ready = append(ready, entry.Payload)
				progressed = true
			} else {
				remaining = append(remaining, entry)
			}
		}

		b.pending = remaining
		if !progressed {
			break
		}
	}

	if len(b.pending) > b.maxPending {
		evict := len(b.pending) - b.maxPending
		b.pending = b.pending[evict:]
		resyncRequested = true
	}

	return ready, resyncRequested
}

func (b *Buffer) allDepsSatisfied(deps [][]byte) bool {
	for _, d := range deps {
		if _, ok := b.received[string(d)]; !ok {
			return false
		}
	}
	return true
}

// PendingCount returns the number of operations currently held back
// awaiting their dependencies.
func (b *Buffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// MarkObserved records hash as already delivered without going through
// Deliver, for seeding the buffer from operations applied locally or
// loaded from a snapshot.
func (b *Buffer) MarkObserved(hash []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received[string(hash)] = struct{}{}
}
