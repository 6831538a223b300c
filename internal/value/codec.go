package value

import (
	"fmt"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// Reasons attached to DECODE_ERROR failures
const (
	ReasonEmptyValue         = "empty_value"
	ReasonUnsupportedVariant = "unsupported_variant"
	ReasonInvalidTimestamp   = "invalid_timestamp"
)

func decodeError(reason, path, message string) *fderror.Error {
	e := fderror.New(message).
		WithCode(fderror.CodeDecode).
		WithOperation("Decode").
		WithDetail(fderror.DetailReason, reason)
	if path != "" {
		e.WithDetail(fderror.DetailPath, path)
	}
	return e
}

// Decode converts a wire value into a Value. An unset union is a
// DECODE_ERROR with reason empty_value; wire variants outside the closed set
// (bytes, geo point, pipeline expressions) fail with unsupported_variant.
func Decode(w *firestorepb.Value) (Value, error) {
	return decodeAt(w, "")
}

func decodeAt(w *firestorepb.Value, path string) (Value, error) {
	if w == nil || w.GetValueType() == nil {
		return Value{}, decodeError(ReasonEmptyValue, path, "value has no variant set")
	}

	switch vt := w.GetValueType().(type) {
	case *firestorepb.Value_NullValue:
		return Null(), nil
	case *firestorepb.Value_BooleanValue:
		return Bool(vt.BooleanValue), nil
	case *firestorepb.Value_IntegerValue:
		return Int(vt.IntegerValue), nil
	case *firestorepb.Value_DoubleValue:
		return Double(vt.DoubleValue), nil
	case *firestorepb.Value_TimestampValue:
		if vt.TimestampValue == nil {
			return Value{}, decodeError(ReasonEmptyValue, path, "timestamp value is empty")
		}
		if err := vt.TimestampValue.CheckValid(); err != nil {
			return Value{}, decodeError(ReasonInvalidTimestamp, path, err.Error())
		}
		return Timestamp(vt.TimestampValue.AsTime()), nil
	case *firestorepb.Value_StringValue:
		return String(vt.StringValue), nil
	case *firestorepb.Value_ReferenceValue:
		return Reference(vt.ReferenceValue), nil
	case *firestorepb.Value_ArrayValue:
		wire := vt.ArrayValue.GetValues()
		elems := make([]Value, len(wire))
		for i, e := range wire {
			v, err := decodeAt(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{kind: KindArray, arr: elems}, nil
	case *firestorepb.Value_MapValue:
		m, err := decodeFieldsAt(vt.MapValue.GetFields(), path)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, decodeError(ReasonUnsupportedVariant, path,
			fmt.Sprintf("unsupported wire variant %T", vt))
	}
}

// DecodeFields converts a wire field mapping. The first failing field aborts
// the whole mapping; its path is reported in the error details.
func DecodeFields(fields map[string]*firestorepb.Value) (map[string]Value, error) {
	return decodeFieldsAt(fields, "")
}

func decodeFieldsAt(fields map[string]*firestorepb.Value, path string) (map[string]Value, error) {
	out := make(map[string]Value, len(fields))
	for name, w := range fields {
		child := name
		if path != "" {
			child = path + "." + name
		}
		v, err := decodeAt(w, child)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Encode converts a Value into its wire form. Encoding the zero Value fails
// with INVALID_ARGUMENT.
func Encode(v Value) (*firestorepb.Value, error) {
	return encodeAt(v, "")
}

func encodeAt(v Value, path string) (*firestorepb.Value, error) {
	switch v.kind {
	case KindNull:
		return &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}, nil
	case KindBoolean:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BooleanValue{BooleanValue: v.b}}, nil
	case KindInteger:
		return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: v.i}}, nil
	case KindDouble:
		return &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: v.d}}, nil
	case KindTimestamp:
		return &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: timestamppb.New(v.t)}}, nil
	case KindString:
		return &firestorepb.Value{ValueType: &firestorepb.Value_StringValue{StringValue: v.s}}, nil
	case KindReference:
		return &firestorepb.Value{ValueType: &firestorepb.Value_ReferenceValue{ReferenceValue: v.s}}, nil
	case KindArray:
		wire := make([]*firestorepb.Value, len(v.arr))
		for i, e := range v.arr {
			w, err := encodeAt(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			wire[i] = w
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_ArrayValue{ArrayValue: &firestorepb.ArrayValue{Values: wire}}}, nil
	case KindMap:
		fields, err := encodeFieldsAt(v.m, path)
		if err != nil {
			return nil, err
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{Fields: fields}}}, nil
	default:
		e := fderror.New("cannot encode a value with no variant").
			WithCode(fderror.CodeInvalidArgument).
			WithOperation("Encode").
			WithDetail(fderror.DetailReason, ReasonEmptyValue)
		if path != "" {
			e.WithDetail(fderror.DetailPath, path)
		}
		return nil, e
	}
}

// EncodeFields converts a field mapping into its wire form
func EncodeFields(fields map[string]Value) (map[string]*firestorepb.Value, error) {
	return encodeFieldsAt(fields, "")
}

func encodeFieldsAt(fields map[string]Value, path string) (map[string]*firestorepb.Value, error) {
	out := make(map[string]*firestorepb.Value, len(fields))
	for name, v := range fields {
		child := name
		if path != "" {
			child = path + "." + name
		}
		w, err := encodeAt(v, child)
		if err != nil {
			return nil, err
		}
		out[name] = w
	}
	return out, nil
}
