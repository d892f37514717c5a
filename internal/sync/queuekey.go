package sync

import (
	"encoding/hex"
	"strings"

	"acp-sync/internal/hlc"
)

const queuePrefix = "queue::"

// QueueKey builds the durable storage key for a pending op, encoding
// its HLC so that lexicographic ordering of queue keys matches HLC
// order: fixed-width hex of the 16-byte wire form sorts identically to
// the HLC it represents.
func QueueKey(ts hlc.HLC, key string) string {
	wire := ts.Encode()
	return queuePrefix + hex.EncodeToString(wire[:]) + "::" + key
}

// ParseQueueKey recovers the timestamp and original key from a durable
// queue key produced by QueueKey.
func ParseQueueKey(queueKey string) (ts hlc.HLC, key string, ok bool) {
	rest, found := strings.CutPrefix(queueKey, queuePrefix)
	if !found {
		return hlc.HLC{}, "", false
	}

	parts := strings.SplitN(rest, "::", 2)
	if len(parts) != 2 {
		return hlc.HLC{}, "", false
	}

	decoded, err := hex.DecodeString(parts[0])
	if err != nil {
		return hlc.HLC{}, "", false
	}

	ts, ok = hlc.DecodeSlice(decoded)
	if !ok {
		return hlc.HLC{}, "", false
	}
	return ts, parts[1], true
}
