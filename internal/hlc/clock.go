// Package hlc implements a hybrid logical clock: a monotonic timestamp
// combining physical wall time with a logical counter, giving every
// replica a deterministic total order over events without relying on
// synchronized clocks.
package hlc

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// HLC is a hybrid logical clock timestamp: 48 bits of physical
// milliseconds, a logical counter, and a node identifier, compared
// lexicographically in that order.
type HLC struct {
	Physical int64  // physical timestamp in milliseconds
	Logical  uint32 // logical counter for concurrent events
	NodeID   uint64 // wire-compact node identifier, see EncodeNodeID
}

// Clock is a thread-safe hybrid logical clock bound to one node.
type Clock struct {
	mu       sync.Mutex
	physical int64  // last physical time observed, in milliseconds
	logical  uint32 // current logical counter
	nodeID   uint64 // this node's wire identifier
	nodeStr  string // this node's human-readable identifier, for logs
	maxDrift time.Duration
}

// NewClock creates a clock for nodeID, rejecting remote timestamps that
// claim to be more than maxDrift ahead of local wall time.
func NewClock(nodeID string, maxDrift time.Duration) *Clock {
	return &Clock{
		physical: nowMillis(),
		nodeID:   EncodeNodeID(nodeID),
		nodeStr:  nodeID,
		maxDrift: maxDrift,
	}
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Now returns a new HLC, advancing the logical counter when physical
// time has not moved and folding in offsetMs (the engine's clock
// correction relative to server time).
func (c *Clock) Now(offsetMs int64) HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := nowMillis() + offsetMs
	if wall > c.physical {
		c.physical = wall
		c.logical = 0
	} else {
		c.logical++
	}

	return HLC{Physical: c.physical, Logical: c.logical, NodeID: c.nodeID}
}

// Observe advances the local clock past a remote timestamp, the way
// replicas merge logical clocks on message receipt. Returns an error if
// the remote physical time exceeds the configured drift bound.
func (c *Clock) Observe(remote HLC) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := nowMillis()
	drift := remote.Physical - wall
	if drift > c.maxDrift.Milliseconds() {
		return fmt.Errorf("clock drift too large: remote %dms ahead of local %dms (max %v)",
			remote.Physical, wall, c.maxDrift)
	}

	switch {
	case remote.Physical > c.physical:
		c.physical = remote.Physical
		c.logical = remote.Logical + 1
	case remote.Physical == c.physical:
		if remote.Logical >= c.logical {
			c.logical = remote.Logical + 1
		} else {
			c.logical++
		}
	default:
		c.logical++
	}

	if wall > c.physical {
		c.physical = wall
		c.logical = 0
	}

	return nil
}

// NodeID returns this clock's wire-compact node identifier.
func (c *Clock) NodeID() uint64 {
	return c.nodeID
}

// EncodeNodeID packs a peer id string into a wire-compact uint64. Ids of
// 8 bytes or fewer round-trip exactly via DecodeNodeID; longer ids are
// folded with FNV-1a and are not recoverable from the wire form alone
// (only used for HLC tie-break ordering, never for identity lookup).
// A folded id always has a zero second byte and a non-zero last byte,
// a shape no packed short id has, so DecodeNodeID rejects it.
func EncodeNodeID(id string) uint64 {
	b := []byte(id)
	if len(b) <= 8 && len(b) > 0 {
		var out uint64
		for i := 0; i < len(b); i++ {
			out = out<<8 | uint64(b[i])
		}
		return out << (8 * uint(8-len(b)))
	}
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()&^(0xff<<48) | 1
}

// DecodeNodeID recovers the original string for ids that were 1-8 bytes
// when encoded; returns ("", false) for hashed (longer) ids.
func DecodeNodeID(n uint64) (string, bool) {
	if n == 0 {
		return "", false
	}
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * (7 - i)))
	}
	end := 8
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	trimmed := buf[:end]
	for _, b := range trimmed {
		if b == 0 {
			return "", false
		}
	}
	if EncodeNodeID(string(trimmed)) != n {
		return "", false
	}
	return string(trimmed), true
}

// IsConcurrentWith reports whether h and other share the same physical
// and logical time (no causal order between them), independent of the
// node tie-break used for total ordering.
func (h HLC) IsConcurrentWith(other HLC) bool {
	return h.Physical == other.Physical && h.Logical == other.Logical
}

// HappensBefore reports whether h is ordered strictly before other.
func (h HLC) HappensBefore(other HLC) bool {
	return h.Compare(other) < 0
}

// HappensAfter reports whether h is ordered strictly after other.
func (h HLC) HappensAfter(other HLC) bool {
	return h.Compare(other) > 0
}

// Equal reports whether h and other compare equal.
func (h HLC) Equal(other HLC) bool {
	return h.Compare(other) == 0
}

// Compare returns -1, 0, or 1 as h orders before, equal to, or after
// other, lexicographically over (physical, logical, node).
func (h HLC) Compare(other HLC) int {
	if h.Physical != other.Physical {
		if h.Physical < other.Physical {
			return -1
		}
		return 1
	}
	if h.Logical != other.Logical {
		if h.Logical < other.Logical {
			return -1
		}
		return 1
	}
	if h.NodeID != other.NodeID {
		if h.NodeID < other.NodeID {
			return -1
		}
		return 1
	}
	return 0
}

// Age returns how long ago h occurred relative to nowMs.
func (h HLC) Age(nowMs int64) time.Duration {
	if nowMs > h.Physical {
		return time.Duration(nowMs-h.Physical) * time.Millisecond
	}
	return 0
}

// IsZero reports whether h is the zero-value timestamp.
func (h HLC) IsZero() bool {
	return h.Physical == 0 && h.Logical == 0 && h.NodeID == 0
}

// String returns a human-readable representation of h.
func (h HLC) String() string {
	t := time.UnixMilli(h.Physical).UTC()
	return fmt.Sprintf("HLC{physical=%s, logical=%d, node=%#x}",
		t.Format(time.RFC3339Nano), h.Logical, h.NodeID)
}

// NowMillis exposes the clock's wall-time source for callers that need
// to compare an HLC's age against "now" outside of Now/Observe.
func NowMillis() int64 {
	return nowMillis()
}
