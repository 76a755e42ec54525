package internal

import (
	"strings"

	"github.com/lychee-technology/rowstore"
)

// keyResolver turns identifiers into predicates over one key.
type keyResolver struct {
	key        rowstore.Key
	prefix     string
	recordType string
}

func newKeyResolver(key rowstore.Key, prefix, recordType string) keyResolver {
	return keyResolver{key: key, prefix: prefix, recordType: recordType}
}

func (r keyResolver) column(col string) string {
	if r.prefix == "" || strings.Contains(col, ".") {
		return col
	}
	return r.prefix + "." + col
}

// resolve returns the predicate addressing id and whether it selects at most
// one row.
func (r keyResolver) resolve(id rowstore.Identifier) (rowstore.Predicate, bool, error) {
	if id.IsEmpty() || len(r.key) == 0 {
		return nil, false, nil
	}
	if r.key.IsComposite() {
		return r.resolveComposite(id)
	}
	return r.resolveSingle(id)
}

func (r keyResolver) resolveSingle(id rowstore.Identifier) (rowstore.Predicate, bool, error) {
	col := r.key[0]
	switch id.Kind() {
	case rowstore.KindScalar:
		return r.match(col, id.Scalar())
	case rowstore.KindList:
		return rowstore.Predicate{rowstore.In(r.column(col), id.List()...)}, false, nil
	case rowstore.KindMap:
		v, ok := id.Maps()[0][col]
		if !ok || len(id.Maps()[0]) != 1 {
			return nil, false, rowstore.NewInvalidCompositeIDError(r.key, r.recordType)
		}
		return r.match(col, v)
	case rowstore.KindMapList:
		values, err := r.collect(id.Maps(), col)
		if err != nil {
			return nil, false, err
		}
		return rowstore.Predicate{rowstore.In(r.column(col), values...)}, false, nil
	}
	return nil, false, nil
}

func (r keyResolver) resolveComposite(id rowstore.Identifier) (rowstore.Predicate, bool, error) {
	switch id.Kind() {
	case rowstore.KindScalar:
		// a single value only narrows the leading column
		pred, _, err := r.match(r.key[0], id.Scalar())
		return pred, false, err

	case rowstore.KindList:
		values := id.List()
		n := min(len(values), len(r.key))
		pred := make(rowstore.Predicate, 0, n)
		singleton := len(values) >= len(r.key)
		for i := 0; i < n; i++ {
			c, one := r.condition(r.key[i], values[i])
			pred = append(pred, c)
			singleton = singleton && one
		}
		return pred, singleton, nil

	case rowstore.KindMap:
		m := id.Maps()[0]
		cols, err := r.leadingColumns(m)
		if err != nil {
			return nil, false, err
		}
		pred := make(rowstore.Predicate, 0, len(cols))
		singleton := len(cols) == len(r.key)
		for _, col := range cols {
			c, one := r.condition(col, m[col])
			pred = append(pred, c)
			singleton = singleton && one
		}
		return pred, singleton, nil

	case rowstore.KindMapList:
		maps := id.Maps()
		cols, err := r.leadingColumns(maps[0])
		if err != nil {
			return nil, false, err
		}
		pred := make(rowstore.Predicate, 0, len(cols))
		for _, col := range cols {
			values, err := r.collect(maps, col)
			if err != nil {
				return nil, false, err
			}
			pred = append(pred, rowstore.In(r.column(col), values...))
		}
		return pred, false, nil
	}
	return nil, false, nil
}

// leadingColumns returns the key columns named by m, in key order. They must
// form a leading prefix of the key.
func (r keyResolver) leadingColumns(m map[string]any) ([]string, error) {
	if len(m) > len(r.key) {
		return nil, rowstore.NewInvalidCompositeIDError(r.key, r.recordType)
	}
	cols := r.key[:len(m)]
	for _, col := range cols {
		if _, ok := m[col]; !ok {
			return nil, rowstore.NewInvalidCompositeIDError(r.key, r.recordType)
		}
	}
	return cols, nil
}

// collect gathers the values of col across a batch of maps.
func (r keyResolver) collect(maps []map[string]any, col string) ([]any, error) {
	values := make([]any, 0, len(maps))
	for _, m := range maps {
		v, ok := m[col]
		if !ok {
			return nil, rowstore.NewInvalidCompositeIDError(r.key, r.recordType)
		}
		if isMultiValue(v) {
			values = append(values, toValues(v)...)
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

func (r keyResolver) match(col string, v any) (rowstore.Predicate, bool, error) {
	c, one := r.condition(col, v)
	return rowstore.Predicate{c}, one, nil
}

// condition builds an equality for scalars and a membership test for lists.
// The flag reports whether the condition pins a single value.
func (r keyResolver) condition(col string, v any) (rowstore.Condition, bool) {
	if isMultiValue(v) {
		return rowstore.In(r.column(col), toValues(v)...), false
	}
	return rowstore.Eq(r.column(col), v), true
}
