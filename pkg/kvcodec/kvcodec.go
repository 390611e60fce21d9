// Package kvcodec serialises vectors and metadata to the bytes-keyed form
// the vector store persists. Vectors are comma-separated decimal numerals;
// metadata is a minimal JSON-like text form restricted to string, number,
// and boolean scalars — no nested objects or arrays, matching the shape
// the store actually needs.
package kvcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedVector indicates a vector blob contains a non-numeric token.
var ErrMalformedVector = fmt.Errorf("kvcodec: malformed vector")

// EncodeVector serialises v as comma-separated decimal numerals.
func EncodeVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// DecodeVector parses a comma-separated decimal blob back into a vector.
// An empty string decodes to a nil vector ("not found"). A malformed
// numeral rejects the whole vector.
func DecodeVector(blob string) ([]float64, error) {
	if blob == "" {
		return nil, nil
	}
	tokens := strings.Split(blob, ",")
	out := make([]float64, len(tokens))
	for i, tok := range tokens {
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d (%q): %v", ErrMalformedVector, i, tok, err)
		}
		out[i] = x
	}
	return out, nil
}

// Metadata is the open-ended scalar map persisted alongside each vector.
// Values are restricted to string, float64, and bool.
type Metadata map[string]any

// EncodeMetadata serialises m into the minimal JSON-like text form: a
// brace-delimited, comma-separated list of `"key":value` pairs, in sorted
// key order so the encoding is deterministic.
func EncodeMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		val, err := encodeScalar(m[k])
		if err != nil {
			return "", fmt.Errorf("kvcodec: encoding field %q: %w", k, err)
		}
		b.WriteString(val)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func encodeScalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("kvcodec: unsupported scalar type %T", v)
	}
}

// DecodeMetadata parses the minimal JSON-like text form back into a
// Metadata map. An empty string decodes to a nil map ("not found").
func DecodeMetadata(blob string) (Metadata, error) {
	if blob == "" {
		return nil, nil
	}
	p := &parser{input: blob}
	m, err := p.parseObject()
	if err != nil {
		return nil, fmt.Errorf("kvcodec: decoding metadata: %w", err)
	}
	return m, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
