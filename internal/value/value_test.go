package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/protobuf/types/known/timestamppb"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

func sampleValues() map[string]Value {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
	return map[string]Value{
		"null":       Null(),
		"true":       Bool(true),
		"false":      Bool(false),
		"zero int":   Int(0),
		"min int":    Int(math.MinInt64),
		"max int":    Int(math.MaxInt64),
		"double":     Double(3.25),
		"neg zero":   Double(math.Copysign(0, -1)),
		"nan":        Double(math.NaN()),
		"inf":        Double(math.Inf(1)),
		"timestamp":  Timestamp(ts),
		"epoch":      Timestamp(time.Unix(0, 0)),
		"string":     String("chiba"),
		"empty str":  String(""),
		"unicode":    String("千葉 ✓"),
		"reference":  Reference("projects/p/databases/(default)/documents/test/doc1"),
		"empty arr":  Array(),
		"array":      Array(Int(1), String("two"), Null(), Array(Bool(false))),
		"empty map":  Map(nil),
		"nested map": Map(map[string]Value{"a": Int(1), "b": Map(map[string]Value{"c": Array(Double(0.5))})}),
	}
}

func TestRoundTrip(t *testing.T) {
	for name, v := range sampleValues() {
		t.Run(name, func(t *testing.T) {
			wire, err := Encode(v)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(wire)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !Equal(got, v) {
				t.Errorf("Decode(Encode(v)) = %v, want %v", got, v)
			}
		})
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	fields := sampleValues()

	wire, err := EncodeFields(fields)
	if err != nil {
		t.Fatalf("EncodeFields() error = %v", err)
	}
	got, err := DecodeFields(wire)
	if err != nil {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if !FieldsEqual(got, fields) {
		t.Errorf("fields differ after round trip")
	}
}

func TestTypedExtraction_Strict(t *testing.T) {
	type extractor struct {
		kind Kind
		get  func(Value) error
	}
	extractors := []extractor{
		{KindBoolean, func(v Value) error { _, err := v.AsBool(); return err }},
		{KindInteger, func(v Value) error { _, err := v.AsInt(); return err }},
		{KindDouble, func(v Value) error { _, err := v.AsDouble(); return err }},
		{KindTimestamp, func(v Value) error { _, err := v.AsTimestamp(); return err }},
		{KindString, func(v Value) error { _, err := v.AsString(); return err }},
		{KindReference, func(v Value) error { _, err := v.AsReference(); return err }},
		{KindArray, func(v Value) error { _, err := v.AsArray(); return err }},
		{KindMap, func(v Value) error { _, err := v.AsMap(); return err }},
	}

	for name, v := range sampleValues() {
		for _, ex := range extractors {
			err := ex.get(v)
			if v.Kind() == ex.kind {
				if err != nil {
					t.Errorf("%s: As%s() error = %v", name, ex.kind, err)
				}
				continue
			}
			if !fderror.HasCode(err, fderror.CodeTypeMismatch) {
				t.Errorf("%s: As%s() error = %v, want TYPE_MISMATCH", name, ex.kind, err)
				continue
			}
			e, _ := fderror.As(err)
			if e.DetailString(fderror.DetailExpected) != ex.kind.String() ||
				e.DetailString(fderror.DetailActual) != v.Kind().String() {
				t.Errorf("%s: details = %v", name, e.Details())
			}
		}
	}
}

func TestTypedExtraction_NoCoercion(t *testing.T) {
	if b, err := Int(1).AsBool(); err == nil || b {
		t.Errorf("Int(1).AsBool() = %v, %v; want false and an error", b, err)
	}
	if s, err := Reference("a/b").AsString(); err == nil || s != "" {
		t.Errorf("Reference.AsString() = %q, %v; want empty and an error", s, err)
	}
	if d, err := Int(2).AsDouble(); err == nil || d != 0 {
		t.Errorf("Int.AsDouble() = %v, %v; want 0 and an error", d, err)
	}
}

func TestDecode_EmptyValue(t *testing.T) {
	tests := []struct {
		name string
		wire *firestorepb.Value
	}{
		{"nil", nil},
		{"unset union", &firestorepb.Value{}},
		{"nil timestamp", &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.wire)
			if !fderror.HasCode(err, fderror.CodeDecode) {
				t.Fatalf("Decode() error = %v, want DECODE_ERROR", err)
			}
			e, _ := fderror.As(err)
			if e.DetailString(fderror.DetailReason) != ReasonEmptyValue {
				t.Errorf("reason = %v, want %v", e.DetailString(fderror.DetailReason), ReasonEmptyValue)
			}
		})
	}
}

func TestDecode_UnsupportedVariant(t *testing.T) {
	tests := []struct {
		name string
		wire *firestorepb.Value
	}{
		{"bytes", &firestorepb.Value{ValueType: &firestorepb.Value_BytesValue{BytesValue: []byte{1}}}},
		{"empty bytes", &firestorepb.Value{ValueType: &firestorepb.Value_BytesValue{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.wire)
			e, ok := fderror.As(err)
			if !ok || e.Code() != fderror.CodeDecode {
				t.Fatalf("Decode() error = %v, want DECODE_ERROR", err)
			}
			if e.DetailString(fderror.DetailReason) != ReasonUnsupportedVariant {
				t.Errorf("reason = %v", e.DetailString(fderror.DetailReason))
			}
		})
	}
}

func TestDecode_InvalidTimestamp(t *testing.T) {
	wire := &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{
		TimestampValue: &timestamppb.Timestamp{Seconds: 1, Nanos: 2_000_000_000},
	}}
	_, err := Decode(wire)
	e, ok := fderror.As(err)
	if !ok || e.DetailString(fderror.DetailReason) != ReasonInvalidTimestamp {
		t.Errorf("Decode() error = %v, want invalid_timestamp", err)
	}
}

func TestDecode_NestedErrorPath(t *testing.T) {
	fields := map[string]*firestorepb.Value{
		"tags": {ValueType: &firestorepb.Value_ArrayValue{ArrayValue: &firestorepb.ArrayValue{
			Values: []*firestorepb.Value{
				{ValueType: &firestorepb.Value_StringValue{StringValue: "ok"}},
				{ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{
					Fields: map[string]*firestorepb.Value{"broken": {}},
				}}},
			},
		}}},
	}

	_, err := DecodeFields(fields)
	e, ok := fderror.As(err)
	if !ok {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if got := e.DetailString(fderror.DetailPath); got != "tags[1].broken" {
		t.Errorf("path = %q, want tags[1].broken", got)
	}
}

func TestEncode_InvalidValue(t *testing.T) {
	_, err := Encode(Value{})
	if !fderror.HasCode(err, fderror.CodeInvalidArgument) {
		t.Errorf("Encode(zero) error = %v, want INVALID_ARGUMENT", err)
	}

	_, err = EncodeFields(map[string]Value{"ok": Int(1), "bad": Array(Value{})})
	e, _ := fderror.As(err)
	if e == nil || e.DetailString(fderror.DetailPath) != "bad[0]" {
		t.Errorf("EncodeFields() error = %v, want path bad[0]", err)
	}
}

func TestConstructorsCopy(t *testing.T) {
	elems := []Value{Int(1)}
	arr := Array(elems...)
	elems[0] = Int(2)

	got, _ := arr.AsArray()
	if !Equal(got[0], Int(1)) {
		t.Error("Array must not alias the caller's slice")
	}

	entries := map[string]Value{"a": Int(1)}
	m := Map(entries)
	entries["a"] = Int(2)
	gotMap, _ := m.AsMap()
	if !Equal(gotMap["a"], Int(1)) {
		t.Error("Map must not alias the caller's map")
	}
}

func TestEqual(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"different kinds", Int(1), Double(1), false},
		{"string vs reference", String("a/b"), Reference("a/b"), false},
		{"same instant other zone", Timestamp(ts), Timestamp(ts.In(time.FixedZone("JST", 9*3600))), true},
		{"array order matters", Array(Int(1), Int(2)), Array(Int(2), Int(1)), false},
		{"map order irrelevant", Map(map[string]Value{"a": Int(1), "b": Int(2)}), Map(map[string]Value{"b": Int(2), "a": Int(1)}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseJSONFields(t *testing.T) {
	fields, err := ParseJSONFields([]byte(`{"name":"chiba","done":true,"count":3,"ratio":0.5,"tags":["a",null],"meta":{"x":1}}`))
	if err != nil {
		t.Fatalf("ParseJSONFields() error = %v", err)
	}

	want := map[string]Value{
		"name":  String("chiba"),
		"done":  Bool(true),
		"count": Int(3),
		"ratio": Double(0.5),
		"tags":  Array(String("a"), Null()),
		"meta":  Map(map[string]Value{"x": Int(1)}),
	}
	if !FieldsEqual(fields, want) {
		t.Errorf("ParseJSONFields() = %v", fields)
	}

	if _, err := ParseJSONFields([]byte(`[1,2]`)); !fderror.HasCode(err, fderror.CodeInvalidArgument) {
		t.Errorf("array input error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestToNative(t *testing.T) {
	native := FieldsToNative(map[string]Value{
		"name": String("chiba"),
		"ref":  Reference("test/doc1"),
		"n":    Int(7),
		"d":    Double(2),
		"ts":   Timestamp(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	})

	if native["name"] != "chiba" || native["n"] != int64(7) {
		t.Errorf("FieldsToNative() = %v", native)
	}
	if native["d"] != json.Number("2.0") {
		t.Errorf("d = %#v, want 2.0", native["d"])
	}
	ref, ok := native["ref"].(map[string]interface{})
	if !ok || ref["$ref"] != "test/doc1" {
		t.Errorf("ref = %v", native["ref"])
	}
	ts, ok := native["ts"].(map[string]interface{})
	if !ok || ts["$timestamp"] != "2024-03-01T00:00:00Z" {
		t.Errorf("ts = %v", native["ts"])
	}
}

func TestNativeJSONRoundTrip(t *testing.T) {
	want := sampleValues()
	want["integral double"] = Double(2)
	want["large double"] = Double(1e22)
	want["neg inf"] = Double(math.Inf(-1))

	data, err := json.Marshal(FieldsToNative(want))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	got, err := ParseJSONFields(data)
	if err != nil {
		t.Fatalf("ParseJSONFields() error = %v", err)
	}
	for k, v := range want {
		if !Equal(got[k], v) {
			t.Errorf("%s: got %v (kind %v), want %v (kind %v)", k, got[k], got[k].Kind(), v, v.Kind())
		}
	}
	if !FieldsEqual(got, want) {
		t.Errorf("round trip changed fields: %s", data)
	}
}

func TestFromNative_Markers(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Value
		wantErr bool
	}{
		{"reference", `{"v":{"$ref":"test/doc1"}}`, Reference("test/doc1"), false},
		{"timestamp", `{"v":{"$timestamp":"2024-03-01T12:00:00.5Z"}}`,
			Timestamp(time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC)), false},
		{"nan", `{"v":{"$double":"NaN"}}`, Double(math.NaN()), false},
		{"marker with other keys", `{"v":{"$ref":"x","y":1}}`,
			Map(map[string]Value{"$ref": String("x"), "y": Int(1)}), false},
		{"marker with non-string", `{"v":{"$ref":5}}`, Map(map[string]Value{"$ref": Int(5)}), false},
		{"bad timestamp", `{"v":{"$timestamp":"yesterday"}}`, Value{}, true},
		{"bad double", `{"v":{"$double":"lots"}}`, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ParseJSONFields([]byte(tt.in))
			if tt.wantErr {
				if !fderror.HasCode(err, fderror.CodeInvalidArgument) {
					t.Fatalf("error = %v, want INVALID_ARGUMENT", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJSONFields() error = %v", err)
			}
			if !Equal(fields["v"], tt.want) {
				t.Errorf("v = %v, want %v", fields["v"], tt.want)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	v := Map(map[string]Value{"b": Array(Int(1), Null()), "a": String("x")})
	if got := v.String(); got != `{a: "x", b: [1, null]}` {
		t.Errorf("String() = %s", got)
	}
}
