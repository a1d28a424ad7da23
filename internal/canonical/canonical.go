// Package canonical produces order-independent fingerprints of structured
// values and deep copies through the same codec.
//
// A fingerprint is the JSON encoding of a value after it has been normalized
// to generic maps, slices, strings, booleans and numbers, with object keys
// sorted lexicographically at every depth. Array order is preserved.
// Numbers are compared by value: 50 and 50.0 agree, and integers keep every
// digit, so ids beyond 2^53 never collide.
// Map entries holding null are dropped, so a field the server omits and a
// field it sends as null fingerprint identically.
//
// Inputs the codec cannot represent (channels, functions, cyclic pointers)
// are programming errors and cause a panic.
package canonical

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

var codec = jsoniter.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
}.Froze()

// numberCodec decodes numbers as json.Number so fingerprints see every digit.
var numberCodec = jsoniter.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
	UseNumber:   true,
}.Froze()

// String returns the canonical fingerprint of v.
func String(v any) string {
	generic := normalize(v)
	out, err := codec.Marshal(prune(generic))
	if err != nil {
		panic(fmt.Sprintf("canonical: encode normalized value: %v", err))
	}
	return string(out)
}

// Equal reports whether a and b share a fingerprint.
func Equal(a, b any) bool {
	return String(a) == String(b)
}

// Digest returns the xxh3 hash of a fingerprint, suitable for compact change
// detection and log fields.
func Digest(fingerprint string) uint64 {
	return xxh3.HashString(fingerprint)
}

// Clone returns a deep copy of v. Unexported struct fields are not copied.
func Clone[T any](v T) T {
	var out T
	raw, err := codec.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canonical: encode clone source: %v", err))
	}
	if err := codec.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("canonical: decode clone: %v", err))
	}
	return out
}

// CloneAny deep-copies v while keeping its dynamic type, so a struct stored
// behind an interface comes back as the same struct type rather than a map.
func CloneAny(v any) any {
	if v == nil {
		return nil
	}
	raw, err := codec.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canonical: encode clone source: %v", err))
	}
	ptr := reflect.New(reflect.TypeOf(v))
	if err := codec.Unmarshal(raw, ptr.Interface()); err != nil {
		panic(fmt.Sprintf("canonical: decode clone: %v", err))
	}
	return ptr.Elem().Interface()
}

func normalize(v any) any {
	raw, err := codec.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canonical: encode value: %v", err))
	}
	var generic any
	if err := numberCodec.Unmarshal(raw, &generic); err != nil {
		panic(fmt.Sprintf("canonical: decode value: %v", err))
	}
	return generic
}

func prune(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			if value == nil {
				continue
			}
			out[key] = prune(value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = prune(value)
		}
		return out
	case json.Number:
		return canonicalNumber(typed)
	default:
		return v
	}
}

// canonicalNumber spells n in one form per value. Integers keep every digit;
// other numbers go through float64.
func canonicalNumber(n json.Number) json.Number {
	if i, ok := new(big.Int).SetString(string(n), 10); ok {
		return json.Number(i.String())
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return n
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}
