package rowstore

import (
	"maps"
	"slices"
)

// Record is a flat column to value map for one row.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Has reports whether the column is present, even when its value is nil.
func (r Record) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Columns returns the record's columns in sorted order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

// Key is an ordered list of column names identifying a row.
type Key []string

// Single reports whether the key has exactly one column.
func (k Key) Single() bool { return len(k) == 1 }

// IsComposite reports whether the key spans more than one column.
func (k Key) IsComposite() bool { return len(k) > 1 }

// SameColumns reports whether both keys name the same set of columns,
// ignoring order.
func (k Key) SameColumns(other []string) bool {
	if len(k) != len(other) {
		return false
	}
	a := slices.Clone([]string(k))
	b := slices.Clone(other)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// AltKeys is the set of alternate unique keys of a table.
type AltKeys []Key

// Match returns the registered key whose columns equal cols as a set.
func (a AltKeys) Match(cols []string) (Key, bool) {
	for _, k := range a {
		if k.SameColumns(cols) {
			return k, true
		}
	}
	return nil, false
}

// SortOrder defines sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// Order is one ORDER BY term.
type Order struct {
	Column    string    `json:"column"`
	SortOrder SortOrder `json:"sort_order,omitempty"`
}

// Result is returned by the find family. Singleton results hold at most one
// row.
type Result struct {
	Singleton bool     `json:"singleton"`
	Rows      []Record `json:"rows"`
}

// First returns the first row or nil.
func (r *Result) First() Record {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Empty reports whether the result holds no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Violations maps a field to the validation messages raised for it.
type Violations map[string][]string

// Add appends a message for field.
func (v Violations) Add(field, message string) {
	v[field] = append(v[field], message)
}

// WriteResult is returned by every mutating operation. A failed validation
// is reported through OK and Violations rather than as an error.
type WriteResult struct {
	OK         bool       `json:"ok"`
	Affected   int64      `json:"affected"`
	InsertID   any        `json:"insertId,omitempty"`
	Violations Violations `json:"violations,omitempty"`
}

// Field is one declared attribute of a record type.
type Field struct {
	Name string
	Get  func() any
}

// PlainRecord is implemented by record types that declare their fields.
type PlainRecord interface {
	FieldSchema() []Field
}

// ChangeTrackingRecord is a PlainRecord that also knows which of its fields
// changed since it was loaded.
type ChangeTrackingRecord interface {
	PlainRecord
	RawFields(onlyChanged bool) Record
}
