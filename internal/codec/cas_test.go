package codec

import (
	"bytes"
	"testing"

	"acp-sync/internal/hlc"
)

func TestCAS_RoundTrip_WithExpected(t *testing.T) {
	expected, _ := EncodeValue("old")
	newVal, _ := EncodeValue("new")

	c := CAS{
		Key:             "widgets/1",
		ExpectedPresent: true,
		Expected:        expected,
		New:             newVal,
		PeerID:          "peer_A",
		Timestamp:       hlc.HLC{Physical: 1000, Logical: 1, NodeID: hlc.EncodeNodeID("peer_A")},
	}

	decoded, err := DecodeCAS(EncodeCAS(c))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Key != c.Key {
		t.Errorf("key mismatch")
	}
	if !decoded.ExpectedPresent {
		t.Error("expected ExpectedPresent to round trip true")
	}
	if !bytes.Equal(decoded.Expected, expected) {
		t.Error("expected value mismatch")
	}
	if !bytes.Equal(decoded.New, newVal) {
		t.Error("new value mismatch")
	}
	if !decoded.Timestamp.Equal(c.Timestamp) {
		t.Error("timestamp mismatch")
	}
}

func TestCAS_RoundTrip_NoExpected(t *testing.T) {
	newVal, _ := EncodeValue("new")

	c := CAS{
		Key:             "widgets/2",
		ExpectedPresent: false,
		New:             newVal,
		PeerID:          "peer_A",
		Timestamp:       hlc.HLC{Physical: 2000},
	}

	decoded, err := DecodeCAS(EncodeCAS(c))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ExpectedPresent {
		t.Error("expected ExpectedPresent to round trip false")
	}
	if len(decoded.Expected) != 0 {
		t.Error("expected no expected-value bytes when not present")
	}
}

func TestCAS_DecodeTruncated(t *testing.T) {
	newVal, _ := EncodeValue("new")
	c := CAS{Key: "k", New: newVal, PeerID: "p", Timestamp: hlc.HLC{Physical: 1}}
	encoded := EncodeCAS(c)

	if _, err := DecodeCAS(encoded[:len(encoded)-2]); err == nil {
		t.Error("expected error decoding truncated cas payload")
	}
}
