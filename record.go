package pkstore

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// DefaultEntityTypeField is the name of the field that classifies records.
const DefaultEntityTypeField = "ENTITYTYPE"

// Field is the result of a field lookup: either Present with a value, or
// Absent. A field explicitly set to nil is present.
type Field struct {
	value   any
	present bool
}

func Present(v any) Field { return Field{value: v, present: true} }
func Absent() Field       { return Field{} }

func (f Field) IsPresent() bool { return f.present }
func (f Field) IsAbsent() bool  { return !f.present }
func (f Field) Value() any      { return f.value }

// String returns the value if the field is present and holds a string.
func (f Field) String() (string, bool) {
	if !f.present {
		return "", false
	}
	s, ok := f.value.(string)
	return s, ok
}

// Is reports whether the field is present and holds exactly the string s.
func (f Field) Is(s string) bool {
	v, ok := f.String()
	return ok && v == s
}

func (f Field) GoString() string {
	if !f.present {
		return "Absent()"
	}
	return fmt.Sprintf("Present(%#v)", f.value)
}

// Record is a set of named fields. The zero Record is empty and ready to use.
//
// Field values are normalized when stored: integers of any kind become int64
// (uint64 if they do not fit), floats become float64, slices other than
// []byte become []any, and maps with string keys become map[string]any.
// Normalized values survive encoding and decoding unchanged.
type Record struct {
	fields map[string]any
}

func NewRecord(fields map[string]any) Record {
	if fields == nil {
		return Record{}
	}
	return Record{fields: normalizeFields(fields)}
}

func (r Record) Get(name string) Field {
	v, ok := r.fields[name]
	if !ok {
		return Absent()
	}
	return Present(v)
}

// EntityType looks up DefaultEntityTypeField.
func (r Record) EntityType() Field {
	return r.Get(DefaultEntityTypeField)
}

func (r *Record) Set(name string, v any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = normalizeValue(v)
}

func (r *Record) Unset(name string) {
	delete(r.fields, name)
}

func (r Record) Len() int {
	return len(r.fields)
}

// Names returns field names in ascending order.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Fields returns a copy of the field map.
func (r Record) Fields() map[string]any {
	return maps.Clone(r.fields)
}

func (r Record) String() string {
	return fmt.Sprintf("%v", r.fields)
}

func normalizeFields(fields map[string]any) map[string]any {
	result := make(map[string]any, len(fields))
	for k, v := range fields {
		result[k] = normalizeValue(v)
	}
	return result
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case nil, string, bool, int64, float64, []byte:
		return v
	case map[string]any:
		if v == nil {
			return nil
		}
		return normalizeFields(v)
	case []any:
		if v == nil {
			return nil
		}
		result := make([]any, len(v))
		for i, e := range v {
			result[i] = normalizeValue(e)
		}
		return result
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u > math.MaxInt64 {
			return u
		} else {
			return int64(u)
		}
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		result := make([]any, rv.Len())
		for i := range result {
			result[i] = normalizeValue(rv.Index(i).Interface())
		}
		return result
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		result := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			result[it.Key().String()] = normalizeValue(it.Value().Interface())
		}
		return result
	default:
		return v
	}
}
