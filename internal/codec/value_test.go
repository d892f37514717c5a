package codec

import "testing"

func TestValue_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   Value
	}{
		{"nil", nil},
		{"bool true", true},
		{"bool false", false},
		{"int", int64(42)},
		{"negative int", int64(-17)},
		{"float", 3.14159},
		{"string", "hello, world"},
		{"empty string", ""},
		{"bytes", []byte{0x01, 0x02, 0xff}},
		{"sequence", []any{int64(1), "two", 3.0, nil}},
		{"map", map[string]any{"a": int64(1), "b": "two"}},
		{"nested", map[string]any{
			"list": []any{int64(1), int64(2), int64(3)},
			"meta": map[string]any{"nested": true},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeValue(tc.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := DecodeValue(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !DeepEqual(tc.in, decoded) {
				t.Errorf("round trip mismatch: in=%#v out=%#v", tc.in, decoded)
			}
		})
	}
}

func TestValue_DecodeTruncated(t *testing.T) {
	encoded, err := EncodeValue(map[string]any{"a": int64(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeValue(encoded[:len(encoded)-2]); err == nil {
		t.Error("expected error decoding truncated value")
	}
}

func TestDeepEqual_MapOrderIndependent(t *testing.T) {
	a := map[string]any{"x": int64(1), "y": int64(2)}
	b := map[string]any{"y": int64(2), "x": int64(1)}
	if !DeepEqual(a, b) {
		t.Error("expected maps with same entries to be deep-equal regardless of construction order")
	}
}

func TestDeepEqual_SequenceOrderMatters(t *testing.T) {
	a := []any{int64(1), int64(2)}
	b := []any{int64(2), int64(1)}
	if DeepEqual(a, b) {
		t.Error("expected sequences with different order to be unequal")
	}
}

func TestDeepEqual_NotStringified(t *testing.T) {
	// these would be equal under a naive fmt.Sprintf("%v") comparison
	a := map[string]any{"v": int64(1)}
	b := "map[v:1]"
	if DeepEqual(a, b) {
		t.Error("expected structural comparison to reject a stringified match")
	}
}
