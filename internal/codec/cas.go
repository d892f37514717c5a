package codec

import (
	"encoding/binary"
	"fmt"

	"acp-sync/internal/hlc"
)

// CAS is the wire representation of a compare-and-swap request: the
// server is the final arbiter and may reject it, in which case the
// corrective value arrives later as an ordinary Op.
type CAS struct {
	Key             string
	ExpectedPresent bool
	Expected        []byte // msgpack-encoded Value, only meaningful if ExpectedPresent
	New             []byte // msgpack-encoded Value
	PeerID          string
	Timestamp       hlc.HLC
}

// EncodeCAS packs c into:
//
//	key_len(u32 LE) | key_bytes | expected_present(1) | expected_len(u32 LE) | expected_bytes |
//	new_len(u32 LE) | new_bytes | peer_len(u32 LE) | peer_bytes | hlc(16)
func EncodeCAS(c CAS) []byte {
	expectedLen := 0
	if c.ExpectedPresent {
		expectedLen = len(c.Expected)
	}

	size := 4 + len(c.Key) + 1 + 4 + expectedLen + 4 + len(c.New) + 4 + len(c.PeerID) + hlc.WireSize
	buf := make([]byte, size)
	pos := 0

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(c.Key)))
	pos += 4
	copy(buf[pos:pos+len(c.Key)], c.Key)
	pos += len(c.Key)

	if c.ExpectedPresent {
		buf[pos] = 1
	}
	pos++

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(expectedLen))
	pos += 4
	if c.ExpectedPresent {
		copy(buf[pos:pos+expectedLen], c.Expected)
		pos += expectedLen
	}

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(c.New)))
	pos += 4
	copy(buf[pos:pos+len(c.New)], c.New)
	pos += len(c.New)

	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(c.PeerID)))
	pos += 4
	copy(buf[pos:pos+len(c.PeerID)], c.PeerID)
	pos += len(c.PeerID)

	wire := c.Timestamp.Encode()
	copy(buf[pos:pos+hlc.WireSize], wire[:])

	return buf
}

// DecodeCAS unpacks a byte slice produced by EncodeCAS.
func DecodeCAS(buf []byte) (CAS, error) {
	var c CAS
	pos := 0

	read := func(n int, what string) ([]byte, error) {
		if pos+n > len(buf) {
			return nil, fmt.Errorf("codec: cas payload truncated reading %s", what)
		}
		b := buf[pos : pos+n]
		pos += n
		return b, nil
	}

	keyLenBytes, err := read(4, "key length")
	if err != nil {
		return c, err
	}
	keyLen := int(binary.LittleEndian.Uint32(keyLenBytes))

	keyBytes, err := read(keyLen, "key")
	if err != nil {
		return c, err
	}
	c.Key = string(keyBytes)

	presentByte, err := read(1, "expected present flag")
	if err != nil {
		return c, err
	}
	c.ExpectedPresent = presentByte[0] != 0

	expectedLenBytes, err := read(4, "expected length")
	if err != nil {
		return c, err
	}
	expectedLen := int(binary.LittleEndian.Uint32(expectedLenBytes))

	expectedBytes, err := read(expectedLen, "expected")
	if err != nil {
		return c, err
	}
	if c.ExpectedPresent {
		c.Expected = append([]byte(nil), expectedBytes...)
	}

	newLenBytes, err := read(4, "new value length")
	if err != nil {
		return c, err
	}
	newLen := int(binary.LittleEndian.Uint32(newLenBytes))

	newBytes, err := read(newLen, "new value")
	if err != nil {
		return c, err
	}
	c.New = append([]byte(nil), newBytes...)

	peerLenBytes, err := read(4, "peer length")
	if err != nil {
		return c, err
	}
	peerLen := int(binary.LittleEndian.Uint32(peerLenBytes))

	peerBytes, err := read(peerLen, "peer")
	if err != nil {
		return c, err
	}
	c.PeerID = string(peerBytes)

	hlcBytes, err := read(hlc.WireSize, "timestamp")
	if err != nil {
		return c, err
	}
	var arr [hlc.WireSize]byte
	copy(arr[:], hlcBytes)
	c.Timestamp = hlc.Decode(arr)

	return c, nil
}
