package internal

import (
	"reflect"

	"github.com/lychee-technology/rowstore"
)

// maskRecord keeps only the listed columns that are present in r.
func maskRecord(r rowstore.Record, cols []string) rowstore.Record {
	out := make(rowstore.Record, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// allKeysExist reports whether every column is present, nil values included.
func allKeysExist(cols []string, r rowstore.Record) bool {
	for _, c := range cols {
		if _, ok := r[c]; !ok {
			return false
		}
	}
	return true
}

// anyKeyExists reports whether at least one column is present.
func anyKeyExists(cols []string, r rowstore.Record) bool {
	for _, c := range cols {
		if _, ok := r[c]; ok {
			return true
		}
	}
	return false
}

// allKeysSet reports whether every column is present with a usable value.
func allKeysSet(cols []string, r rowstore.Record) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if !isSet(r[c]) {
			return false
		}
	}
	return true
}

// dropUnset removes nil and empty string values.
func dropUnset(r rowstore.Record) rowstore.Record {
	out := make(rowstore.Record, len(r))
	for k, v := range r {
		if isSet(v) {
			out[k] = v
		}
	}
	return out
}

func isSet(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}

// isMultiValue reports whether v is a list of values. Strings and byte
// slices are scalars.
func isMultiValue(v any) bool {
	switch v.(type) {
	case nil, string, []byte:
		return false
	case []any:
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// toValues flattens a list value into []any.
func toValues(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// extractAttributes reads the named fields declared by value.
func extractAttributes(value rowstore.PlainRecord, names []string) rowstore.Record {
	out := make(rowstore.Record, len(names))
	for _, f := range value.FieldSchema() {
		for _, n := range names {
			if f.Name == n {
				out[n] = f.Get()
				break
			}
		}
	}
	return out
}

// allAttributesExist reports whether value declares every named field.
func allAttributesExist(value rowstore.PlainRecord, names []string) bool {
	declared := declaredFields(value)
	for _, n := range names {
		if _, ok := declared[n]; !ok {
			return false
		}
	}
	return true
}

// anyAttributeExists reports whether value declares at least one named field.
func anyAttributeExists(value rowstore.PlainRecord, names []string) bool {
	declared := declaredFields(value)
	for _, n := range names {
		if _, ok := declared[n]; ok {
			return true
		}
	}
	return false
}

func declaredFields(value rowstore.PlainRecord) map[string]struct{} {
	fields := value.FieldSchema()
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f.Name] = struct{}{}
	}
	return out
}
