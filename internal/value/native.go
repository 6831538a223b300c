package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// Markers tagging the kinds plain JSON cannot express. An object whose only
// key is a marker and whose value is a string decodes to that kind.
const (
	refMarker       = "$ref"
	timestampMarker = "$timestamp"
	doubleMarker    = "$double"
)

// FromNative converts decoded JSON-like data into a Value. json.Number is
// kept as Integer when it has no fraction or exponent, Double otherwise.
// It reads back the typed objects ToNative writes.
func FromNative(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		if !t.IsValid() {
			return Value{}, nativeError("invalid value", t)
		}
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, nativeError("invalid number", t)
		}
		return Double(f), nil
	case string:
		return String(t), nil
	case time.Time:
		return Timestamp(t), nil
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := FromNative(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{kind: KindArray, arr: elems}, nil
	case map[string]interface{}:
		if v, ok, err := fromMarker(t); ok {
			return v, err
		}
		m, err := FieldsFromNative(t)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, nativeError("unsupported type", x)
	}
}

func fromMarker(obj map[string]interface{}) (Value, bool, error) {
	if len(obj) != 1 {
		return Value{}, false, nil
	}
	for k, e := range obj {
		raw, isString := e.(string)
		if !isString {
			return Value{}, false, nil
		}
		switch k {
		case refMarker:
			return Reference(raw), true, nil
		case timestampMarker:
			ts, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return Value{}, true, fderror.Wrap(err, "invalid timestamp").
					WithCode(fderror.CodeInvalidArgument).
					WithOperation("FromNative")
			}
			return Timestamp(ts), true, nil
		case doubleMarker:
			d, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Value{}, true, fderror.Wrap(err, "invalid double").
					WithCode(fderror.CodeInvalidArgument).
					WithOperation("FromNative")
			}
			return Double(d), true, nil
		}
	}
	return Value{}, false, nil
}

// FieldsFromNative converts a JSON object into a field mapping
func FieldsFromNative(obj map[string]interface{}) (map[string]Value, error) {
	out := make(map[string]Value, len(obj))
	for k, e := range obj {
		v, err := FromNative(e)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ParseJSONFields decodes a JSON object into a field mapping
func ParseJSONFields(data []byte) (map[string]Value, error) {
	var obj map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fderror.Wrap(err, "fields must be a JSON object").
			WithCode(fderror.CodeInvalidArgument)
	}
	return FieldsFromNative(obj)
}

// ToNative converts v into plain Go data suitable for json.Marshal, in a
// form ParseJSONFields reads back to an equal value. Timestamps become
// {"$timestamp": rfc3339}, references {"$ref": path} and non-finite doubles
// {"$double": "NaN"}. Integral doubles keep a ".0" so they stay doubles.
func ToNative(v Value) interface{} {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindInteger:
		return v.i
	case KindDouble:
		if math.IsNaN(v.d) || math.IsInf(v.d, 0) {
			return map[string]interface{}{doubleMarker: fmt.Sprint(v.d)}
		}
		if v.d == math.Trunc(v.d) && math.Abs(v.d) < 1e21 {
			return json.Number(strconv.FormatFloat(v.d, 'f', -1, 64) + ".0")
		}
		return v.d
	case KindTimestamp:
		return map[string]interface{}{timestampMarker: v.t.Format(time.RFC3339Nano)}
	case KindString:
		return v.s
	case KindReference:
		return map[string]interface{}{refMarker: v.s}
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToNative(e)
		}
		return out
	case KindMap:
		return FieldsToNative(v.m)
	default:
		return nil
	}
}

// FieldsToNative converts a field mapping with ToNative
func FieldsToNative(fields map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = ToNative(v)
	}
	return out
}

func nativeError(message string, x interface{}) *fderror.Error {
	return fderror.Newf("%s: %T", message, x).
		WithCode(fderror.CodeInvalidArgument).
		WithOperation("FromNative")
}
