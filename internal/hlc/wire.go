package hlc

import "encoding/binary"

// WireSize is the fixed on-wire width of an encoded HLC: 48-bit
// physical milliseconds, 16-bit logical counter, 64-bit node id.
const WireSize = 16

// Encode packs h into its 16-byte wire form.
func (h HLC) Encode() [WireSize]byte {
	var buf [WireSize]byte

	// 48-bit physical, big-endian, into the first 6 bytes
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(h.Physical))
	copy(buf[0:6], p[2:8])

	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Logical))
	binary.BigEndian.PutUint64(buf[8:16], h.NodeID)

	return buf
}

// Decode unpacks a 16-byte wire form back into an HLC.
func Decode(buf [WireSize]byte) HLC {
	var p [8]byte
	copy(p[2:8], buf[0:6])
	physical := int64(binary.BigEndian.Uint64(p[:]))
	logical := binary.BigEndian.Uint16(buf[6:8])
	node := binary.BigEndian.Uint64(buf[8:16])

	return HLC{Physical: physical, Logical: uint32(logical), NodeID: node}
}

// DecodeSlice is a convenience wrapper for callers holding a []byte
// slice of at least WireSize bytes rather than a fixed array.
func DecodeSlice(b []byte) (HLC, bool) {
	if len(b) < WireSize {
		return HLC{}, false
	}
	var arr [WireSize]byte
	copy(arr[:], b[:WireSize])
	return Decode(arr), true
}
