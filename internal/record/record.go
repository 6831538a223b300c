// Package record maps document fields onto typed application records.
//
// Each record type declares its own Schema, the table of required fields and
// their value kinds. The mapper is generic over that table: ToRecord checks
// presence and kind of every declared field before handing the value to the
// record, and FromRecord projects a record back onto exactly its schema.
package record

import (
	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/internal/value"
)

// Field is a required schema entry
type Field struct {
	Name string
	Kind value.Kind
}

// Schema is the ordered list of fields a record type maps
type Schema []Field

// Names returns the field names in declaration order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the field with the given name
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record is implemented by application types that have a field schema.
// Implementations use pointer receivers; Assign is only called with values
// whose kind already matches the schema.
type Record interface {
	Schema() Schema
	ID() string
	SetID(id string)
	FieldValues() map[string]value.Value
	Assign(name string, v value.Value) error
}

// recordPtr constrains a pointer type *T that implements Record
type recordPtr[T any] interface {
	*T
	Record
}

// MissingFieldError reports a required key absent from the document
func MissingFieldError(field string) *fderror.Error {
	return fderror.Newf("missing required field %q", field).
		WithCode(fderror.CodeMissingField).
		WithOperation("ToRecord").
		WithDetail(fderror.DetailField, field)
}

// FieldMismatchError reports a field holding the wrong value variant
func FieldMismatchError(field string, expected, actual value.Kind) *fderror.Error {
	return fderror.Newf("field %q: expected %s, got %s", field, expected, actual).
		WithCode(fderror.CodeTypeMismatch).
		WithOperation("ToRecord").
		WithDetails(map[string]interface{}{
			fderror.DetailField:    field,
			fderror.DetailExpected: expected.String(),
			fderror.DetailActual:   actual.String(),
		})
}

// ToRecord builds a T from a document id and its fields. Fields outside the
// schema are ignored. Schema fields are checked in declaration order, so the
// first missing or mistyped one is reported.
func ToRecord[T any, PT recordPtr[T]](id string, fields map[string]value.Value) (T, error) {
	var rec T
	p := PT(&rec)

	for _, f := range p.Schema() {
		v, ok := fields[f.Name]
		if !ok {
			var zero T
			return zero, MissingFieldError(f.Name)
		}
		if v.Kind() != f.Kind {
			var zero T
			return zero, FieldMismatchError(f.Name, f.Kind, v.Kind())
		}
		if err := p.Assign(f.Name, v); err != nil {
			var zero T
			return zero, fderror.Wrap(err, "assign field "+f.Name).
				WithDetail(fderror.DetailField, f.Name)
		}
	}
	p.SetID(id)
	return rec, nil
}

// FromRecord projects r onto its schema. Values the record reports for
// undeclared names are dropped; declared names it omits are left out.
func FromRecord(r Record) map[string]value.Value {
	all := r.FieldValues()
	out := make(map[string]value.Value, len(r.Schema()))
	for _, f := range r.Schema() {
		if v, ok := all[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
