// Package causal implements the dependency-gated delivery buffer a sync
// engine uses to hold remote operations until their declared
// dependencies have been observed, grounded on the bounded circular
// buffer discipline this module's reconciliation code already uses for
// recent writes.
package causal

import (
	"crypto/sha256"
	"encoding/binary"

	"acp-sync/internal/hlc"
)

// ObservedHash computes the dependency hash H(op) operations reference
// when declaring a causal predecessor. It hashes a length-prefixed
// composite of key, timestamp, and peer id rather than a naively
// delimited string, so a key or peer id containing the delimiter
// character can never be crafted to collide with a different op.
func ObservedHash(key string, ts hlc.HLC, peerID string) []byte {
	var lenBuf [4]byte

	h := sha256.New()

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(key)))
	h.Write(lenBuf[:])
	h.Write([]byte(key))

	wire := ts.Encode()
	h.Write(wire[:])

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(peerID)))
	h.Write(lenBuf[:])
	h.Write([]byte(peerID))

	return h.Sum(nil)
}
