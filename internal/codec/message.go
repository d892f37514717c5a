package codec

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Message tags identify the kind of payload carried in an envelope.
const (
	TagOp        byte = 1
	TagInit      byte = 4
	TagPing      byte = 5
	TagPong      byte = 6
	TagCAS       byte = 7
	TagEncrypted byte = 8
)

// envelope is the hand-assembled flatbuffers table backing a Message:
// a one-byte kind tag (slot 0) and an opaque payload byte vector (slot 1).
// There is no generated schema on disk; the table layout below is the
// flatc-generated shape for a two-field table, built and read directly
// against the flatbuffers builder/table primitives.
const (
	envelopeNumFields  = 2
	envelopeTagSlot    = 0
	envelopePayloadSlot = 1
)

// EncodeMessage frames tag and payload into a flatbuffers envelope.
func EncodeMessage(tag byte, payload []byte) []byte {
	b := flatbuffers.NewBuilder(len(payload) + 16)

	payloadOff := b.CreateByteVector(payload)

	b.StartObject(envelopeNumFields)
	b.PrependUOffsetTSlot(envelopePayloadSlot, payloadOff, 0)
	b.PrependByteSlot(envelopeTagSlot, tag, 0)
	end := b.EndObject()

	b.Finish(end)
	return b.FinishedBytes()
}

// DecodeMessage unframes an envelope produced by EncodeMessage, failing
// gracefully (never panicking) on truncated or malformed input or on a
// tag that is not one of the Tag constants above.
func DecodeMessage(buf []byte) (tag byte, payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("codec: malformed message envelope: %v", r)
		}
	}()

	if len(buf) < flatbuffers.SizeUOffsetT {
		return 0, nil, fmt.Errorf("codec: message envelope too short (%d bytes)", len(buf))
	}

	var tbl flatbuffers.Table
	n := flatbuffers.GetUOffsetT(buf)
	tbl.Bytes = buf
	tbl.Pos = n

	tag = envelopeTag(&tbl)
	switch tag {
	case TagOp, TagInit, TagPing, TagPong, TagCAS, TagEncrypted:
	default:
		return 0, nil, fmt.Errorf("codec: unknown message tag %d", tag)
	}
	payload = envelopePayload(&tbl)
	return tag, payload, nil
}

func envelopeTag(t *flatbuffers.Table) byte {
	o := flatbuffers.UOffsetT(t.Offset(4 + 2*envelopeTagSlot))
	if o != 0 {
		return t.GetByte(o + t.Pos)
	}
	return 0
}

func envelopePayload(t *flatbuffers.Table) []byte {
	o := flatbuffers.UOffsetT(t.Offset(4 + 2*envelopePayloadSlot))
	if o != 0 {
		return t.ByteVector(o + t.Pos)
	}
	return nil
}
