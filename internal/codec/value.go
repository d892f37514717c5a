// Package codec implements the self-describing value encoding and
// message framing used on the wire between sync engines: a msgpack
// value codec and a flatbuffers envelope around it.
package codec

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Value is the closed set of application values the engine can store:
// nil, bool, int64, float64, string, []byte, []Value, map[string]Value.
type Value = any

var mapType = reflect.TypeOf(map[string]any(nil))

func handle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.MapType = mapType
	h.RawToString = true
	h.WriteExt = true // write []byte as msgpack bin, so it decodes back as []byte, not string
	return h
}

// EncodeValue encodes v into its self-describing msgpack wire form.
func EncodeValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, handle())
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("codec: encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeValue decodes b into a Value, normalizing integer and map
// shapes so decode(encode(v)) == v for every value in the closed model.
func DecodeValue(b []byte) (Value, error) {
	var out any
	dec := codec.NewDecoder(bytes.NewReader(b), handle())
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("codec: decode value: %w", err)
	}
	return normalize(out), nil
}

// normalize folds the decoder's numeric/slice output back onto the
// model's canonical Go types (int64 for all integers, recursing into
// sequences and mappings).
func normalize(v any) any {
	switch t := v.(type) {
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case uint:
		return int64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// DeepEqual reports whether a and b are structurally equal under the
// value model: order-independent for mappings, order-sensitive for
// sequences, and never a stringified-form comparison.
func DeepEqual(a, b Value) bool {
	return deepEqual(normalize(a), normalize(b))
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, exists := bv[k]
			if !exists || !deepEqual(v, ov) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
