// Package value models document field values as a closed tagged union and
// converts them to and from the Firestore wire representation.
//
// A Value is built only through its constructors, so a populated Value always
// holds exactly one variant. The zero Value is invalid and cannot be encoded.
// Typed accessors never coerce: asking an Integer for a Boolean fails with a
// TYPE_MISMATCH error.
package value

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// Kind identifies the populated variant of a Value
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBoolean
	KindInteger
	KindDouble
	KindTimestamp
	KindString
	KindReference
	KindArray
	KindMap
)

// String returns the variant name used in error details
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindTimestamp:
		return "timestamp"
	case KindString:
		return "string"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is one of Null, Boolean, Integer, Double, Timestamp, String,
// Reference, Array or Map.
type Value struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	t    time.Time
	s    string
	arr  []Value
	m    map[string]Value
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// Bool returns a Boolean value
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Int returns an Integer value
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Double returns a Double value
func Double(d float64) Value { return Value{kind: KindDouble, d: d} }

// Timestamp returns a Timestamp value; the instant is kept in UTC
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t.UTC()} }

// String returns a String value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Reference returns a Reference value holding a document path
func Reference(path string) Value { return Value{kind: KindReference, s: path} }

// Array returns an Array value. The elements are copied.
func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

// Map returns a Map value. The entries are copied.
func Map(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the populated variant
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by a constructor
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// IsNull reports whether v is the Null variant
func (v Value) IsNull() bool { return v.kind == KindNull }

// MismatchError builds the TYPE_MISMATCH error returned by typed accessors
func MismatchError(expected, actual Kind) *fderror.Error {
	return fderror.Newf("type mismatch: expected %s, got %s", expected, actual).
		WithCode(fderror.CodeTypeMismatch).
		WithDetail(fderror.DetailExpected, expected.String()).
		WithDetail(fderror.DetailActual, actual.String())
}

func (v Value) expect(k Kind) error {
	if v.kind != k {
		return MismatchError(k, v.kind)
	}
	return nil
}

// AsBool returns the Boolean payload
func (v Value) AsBool() (bool, error) {
	if err := v.expect(KindBoolean); err != nil {
		return false, err
	}
	return v.b, nil
}

// AsInt returns the Integer payload
func (v Value) AsInt() (int64, error) {
	if err := v.expect(KindInteger); err != nil {
		return 0, err
	}
	return v.i, nil
}

// AsDouble returns the Double payload
func (v Value) AsDouble() (float64, error) {
	if err := v.expect(KindDouble); err != nil {
		return 0, err
	}
	return v.d, nil
}

// AsTimestamp returns the Timestamp payload
func (v Value) AsTimestamp() (time.Time, error) {
	if err := v.expect(KindTimestamp); err != nil {
		return time.Time{}, err
	}
	return v.t, nil
}

// AsString returns the String payload. A Reference is not a String.
func (v Value) AsString() (string, error) {
	if err := v.expect(KindString); err != nil {
		return "", err
	}
	return v.s, nil
}

// AsReference returns the document path of a Reference
func (v Value) AsReference() (string, error) {
	if err := v.expect(KindReference); err != nil {
		return "", err
	}
	return v.s, nil
}

// AsArray returns a copy of the Array elements
func (v Value) AsArray() ([]Value, error) {
	if err := v.expect(KindArray); err != nil {
		return nil, err
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out, nil
}

// AsMap returns a copy of the Map entries
func (v Value) AsMap() (map[string]Value, error) {
	if err := v.expect(KindMap); err != nil {
		return nil, err
	}
	out := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		out[k] = e
	}
	return out, nil
}

// Equal reports deep equality. Timestamps compare by instant and NaN equals NaN.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid, KindNull:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindInteger:
		return a.i == b.i
	case KindDouble:
		return a.d == b.d || (math.IsNaN(a.d) && math.IsNaN(b.d))
	case KindTimestamp:
		return a.t.Equal(b.t)
	case KindString, KindReference:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return FieldsEqual(a.m, b.m)
	}
	return false
}

// FieldsEqual compares two field mappings; key order is irrelevant
func FieldsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// String renders v for logs and CLI output
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindDouble:
		return fmt.Sprintf("%g", v.d)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindReference:
		return "ref(" + v.s + ")"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}
