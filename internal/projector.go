package internal

import (
	"database/sql/driver"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/lychee-technology/rowstore"
)

var timeType = reflect.TypeOf(time.Time{})

// projectRecord flattens a record-like value into a row. Key columns missing
// from a change set are pulled from the value's declared fields so an update
// never loses its own key.
func projectRecord(value any, key rowstore.Key, format rowstore.DateFormat, onlyChanged bool) (rowstore.Record, error) {
	var raw rowstore.Record
	switch v := value.(type) {
	case nil:
		return rowstore.Record{}, nil
	case rowstore.Record:
		raw = maps.Clone(v)
	case map[string]any:
		raw = maps.Clone(v)
	case rowstore.ChangeTrackingRecord:
		raw = v.RawFields(onlyChanged)
		if len(raw) > 0 {
			missing := make([]string, 0, len(key))
			for _, col := range key {
				if !raw.Has(col) {
					missing = append(missing, col)
				}
			}
			if len(missing) > 0 && anyAttributeExists(v, missing) {
				maps.Copy(raw, extractAttributes(v, missing))
			}
		}
	case rowstore.PlainRecord:
		raw = make(rowstore.Record)
		for _, f := range v.FieldSchema() {
			raw[f.Name] = f.Get()
		}
	default:
		var err error
		raw, err = structToRecord(value)
		if err != nil {
			return nil, err
		}
	}

	out := make(rowstore.Record, len(raw))
	for col, v := range raw {
		nv, err := normalizeValue(v, format)
		if err != nil {
			return nil, rowstore.NewInvalidRecordError(fmt.Sprintf("column %q: %v", col, err))
		}
		out[col] = nv
	}
	return out, nil
}

// structToRecord reads the exported top-level fields of a struct, keyed by
// their db tag.
func structToRecord(value any) (rowstore.Record, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return rowstore.Record{}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, rowstore.NewInvalidRecordError(fmt.Sprintf("unsupported value of type %T", value))
	}
	rt := rv.Type()
	out := make(rowstore.Record, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("db"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out[name] = rv.Field(i).Interface()
	}
	return out, nil
}

// normalizeValue formats timestamps and rejects nested values.
func normalizeValue(v any, format rowstore.DateFormat) (any, error) {
	switch t := v.(type) {
	case nil, []byte:
		return v, nil
	case time.Time:
		return formatTime(t, format), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return formatTime(*t, format), nil
	case driver.Valuer:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		dv, err := t.Value()
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, nil
		}
		return normalizeValue(dv, format)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface(), format)
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan, reflect.Func:
		return nil, fmt.Errorf("nested %s values are not supported", rv.Kind())
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return formatTime(rv.Convert(timeType).Interface().(time.Time), format), nil
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return nil, fmt.Errorf("nested struct %s is not supported", rv.Type())
	}
	return v, nil
}

func formatTime(t time.Time, format rowstore.DateFormat) any {
	switch format {
	case rowstore.DateFormatDatetime:
		return t.Format(rowstore.TimestampLayout)
	case rowstore.DateFormatDate:
		return t.Format(rowstore.DateLayout)
	case rowstore.DateFormatInt:
		return t.Unix()
	default:
		return t.String()
	}
}
