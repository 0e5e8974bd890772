// Package canon implements the deterministic JSON encoder shared by the AAD
// builder, the sidecar projector/verifier, and the envelope codec's
// plaintext serialization. Object keys are sorted in strictly-ascending
// lexicographic order by Unicode code point at every nesting depth, arrays
// preserve input order, and the output carries no incidental whitespace.
//
// encoding/json's default Marshal does not guarantee recursive key
// ordering for map[string]any (only top-level struct field order is
// stable), so canonicalization is written directly over the decoded value
// tree instead of relying on the standard encoder's map iteration.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Canonicalize serializes value into its canonical JSON byte form. value
// must already be JSON-compatible (the output of encoding/json.Unmarshal
// into any, or a map[string]any/[]any/string/float64/bool/nil tree); cycles
// cannot occur in such a tree and non-finite numbers are rejected.
func Canonicalize(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustCanonicalize panics on error; used at call sites that have already
// validated value (e.g. re-encoding a value this package just decoded).
func MustCanonicalize(value any) []byte {
	b, err := Canonicalize(value)
	if err != nil {
		panic(err)
	}
	return b
}

// CanonicalizeToString is a convenience wrapper returning the canonical
// form as a string, as used for sidecar projection entries.
func CanonicalizeToString(value any) (string, error) {
	b, err := Canonicalize(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encode(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return encodeString(buf, v)
	case json.Number:
		return encodeNumber(buf, v)
	case float64:
		return encodeFloat(buf, v)
	case int:
		fmt.Fprintf(buf, "%d", v)
		return nil
	case int64:
		fmt.Fprintf(buf, "%d", v)
		return nil
	case map[string]any:
		return encodeObject(buf, v)
	case []any:
		return encodeArray(buf, v)
	default:
		return fmt.Errorf("canon: value of type %T is not JSON-serializable", value)
	}
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessCodePoint(keys[i], keys[j]) })

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// lessCodePoint compares strings by Unicode code point order, which for
// valid UTF-8 coincides with byte-wise comparison.
func lessCodePoint(a, b string) bool {
	return a < b
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("canon: invalid string: %w", err)
	}
	buf.Write(b)
	return nil
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canon: invalid number %q: %w", n, err)
	}
	return encodeFloat(buf, f)
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canon: non-finite number %v is not JSON-serializable", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		fmt.Fprintf(buf, "%d", int64(f))
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("canon: invalid number: %w", err)
	}
	buf.Write(b)
	return nil
}

// DecodeJSON decodes raw JSON bytes into the any-tree this package expects,
// preserving object-key order irrelevance (canonicalization re-sorts) and
// numeric precision via json.Number so integral values round-trip exactly.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: invalid JSON: %w", err)
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers walks the tree so that json.Number leaves (preserved by
// UseNumber to avoid float64 precision loss on large integers) are left
// untouched for encode, which special-cases json.Number directly.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			x[k] = normalizeNumbers(vv)
		}
		return x
	case []any:
		for i, vv := range x {
			x[i] = normalizeNumbers(vv)
		}
		return x
	default:
		return x
	}
}
