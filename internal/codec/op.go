package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"acp-sync/internal/hlc"
)

// Op is the wire representation of a single replicated write: an
// identified, timestamped key/value pair together with the hashes of
// the operations it causally depends on.
type Op struct {
	ID        uuid.UUID
	Key       string
	Timestamp hlc.HLC
	Value     []byte // msgpack-encoded Value, see EncodeValue
	Deps      [][]byte
}

// EncodeOp packs op into its fixed byte layout:
//
//	uuid(16) | key_len(u32 LE) | key_bytes | hlc(16) |
//	val_len(u32 LE) | val_bytes | deps_count(u32 LE) | (dep_len(u32 LE) | dep_bytes)*
func EncodeOp(op Op) []byte {
	size := 16 + 4 + len(op.Key) + hlc.WireSize + 4 + len(op.Value) + 4
	for _, d := range op.Deps {
		size += 4 + len(d)
	}

	buf := make([]byte, size)
	pos := 0

	copy(buf[pos:pos+16], op.ID[:])
	pos += 16

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(op.Key)))
	pos += 4
	copy(buf[pos:pos+len(op.Key)], op.Key)
	pos += len(op.Key)

	hlcBytes := op.Timestamp.Encode()
	copy(buf[pos:pos+hlc.WireSize], hlcBytes[:])
	pos += hlc.WireSize

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(op.Value)))
	pos += 4
	copy(buf[pos:pos+len(op.Value)], op.Value)
	pos += len(op.Value)

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(op.Deps)))
	pos += 4
	for _, d := range op.Deps {
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(d)))
		pos += 4
		copy(buf[pos:pos+len(d)], d)
		pos += len(d)
	}

	return buf
}

// DecodeOp unpacks a byte slice produced by EncodeOp, returning an error
// on any truncated or inconsistent field rather than panicking.
func DecodeOp(buf []byte) (Op, error) {
	var op Op
	pos := 0

	read := func(n int, what string) ([]byte, error) {
		if pos+n > len(buf) {
			return nil, fmt.Errorf("codec: op payload truncated reading %s", what)
		}
		b := buf[pos : pos+n]
		pos += n
		return b, nil
	}

	idBytes, err := read(16, "id")
	if err != nil {
		return op, err
	}
	copy(op.ID[:], idBytes)

	keyLenBytes, err := read(4, "key length")
	if err != nil {
		return op, err
	}
	keyLen := int(binary.LittleEndian.Uint32(keyLenBytes))

	keyBytes, err := read(keyLen, "key")
	if err != nil {
		return op, err
	}
	op.Key = string(keyBytes)

	hlcBytes, err := read(hlc.WireSize, "timestamp")
	if err != nil {
		return op, err
	}
	var arr [hlc.WireSize]byte
	copy(arr[:], hlcBytes)
	op.Timestamp = hlc.Decode(arr)

	valLenBytes, err := read(4, "value length")
	if err != nil {
		return op, err
	}
	valLen := int(binary.LittleEndian.Uint32(valLenBytes))

	valBytes, err := read(valLen, "value")
	if err != nil {
		return op, err
	}
	op.Value = append([]byte(nil), valBytes...)

	depsCountBytes, err := read(4, "deps count")
	if err != nil {
		return op, err
	}
	depsCount := int(binary.LittleEndian.Uint32(depsCountBytes))

	// each dep takes at least its 4-byte length, so the remaining bytes
	// bound how many can really follow, whatever depsCount claims
	op.Deps = make([][]byte, 0, min(depsCount, (len(buf)-pos)/4))
	for i := 0; i < depsCount; i++ {
		depLenBytes, err := read(4, "dep length")
		if err != nil {
			return op, err
		}
		depLen := int(binary.LittleEndian.Uint32(depLenBytes))

		depBytes, err := read(depLen, "dep")
		if err != nil {
			return op, err
		}
		op.Deps = append(op.Deps, append([]byte(nil), depBytes...))
	}

	return op, nil
}
