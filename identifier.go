package rowstore

import (
	"fmt"
	"reflect"
)

// IdentifierKind classifies the shape of an Identifier.
type IdentifierKind int

const (
	KindNone IdentifierKind = iota
	KindScalar
	KindList
	KindMap
	KindMapList
)

func (k IdentifierKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindMapList:
		return "map-list"
	default:
		return "none"
	}
}

// Identifier addresses one or more rows by key value.
type Identifier struct {
	kind   IdentifierKind
	scalar any
	list   []any
	maps   []map[string]any
}

// NoID is the empty identifier. It resolves to an empty predicate.
var NoID = Identifier{}

// ID addresses rows by a single value.
func ID(v any) Identifier {
	if v == nil {
		return NoID
	}
	return Identifier{kind: KindScalar, scalar: v}
}

// IDs addresses rows by a list of values. For composite keys the values are
// read positionally.
func IDs(vs ...any) Identifier {
	if len(vs) == 0 {
		return NoID
	}
	return Identifier{kind: KindList, list: vs}
}

// KeyValues addresses rows by column name.
func KeyValues(m map[string]any) Identifier {
	if len(m) == 0 {
		return NoID
	}
	return Identifier{kind: KindMap, maps: []map[string]any{m}}
}

// KeyValueSets addresses several rows, one column map each.
func KeyValueSets(ms ...map[string]any) Identifier {
	out := make([]map[string]any, 0, len(ms))
	for _, m := range ms {
		if len(m) > 0 {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return NoID
	}
	return Identifier{kind: KindMapList, maps: out}
}

// ParseIdentifier classifies a dynamic value such as a decoded JSON document.
func ParseIdentifier(v any) (Identifier, error) {
	switch t := v.(type) {
	case nil:
		return NoID, nil
	case Identifier:
		return t, nil
	case map[string]any:
		return KeyValues(t), nil
	case Record:
		return KeyValues(t), nil
	case []map[string]any:
		return KeyValueSets(t...), nil
	case []Record:
		ms := make([]map[string]any, len(t))
		for i, r := range t {
			ms[i] = r
		}
		return KeyValueSets(ms...), nil
	case []byte:
		return ID(string(t)), nil
	case []any:
		return parseList(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return parseList(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return NoID, fmt.Errorf("unsupported identifier map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return KeyValues(m), nil
	case reflect.Struct:
		return NoID, fmt.Errorf("unsupported identifier type %T", v)
	}
	return ID(v), nil
}

func parseList(items []any) (Identifier, error) {
	if len(items) == 0 {
		return NoID, nil
	}
	maps := 0
	for _, it := range items {
		switch it.(type) {
		case map[string]any, Record:
			maps++
		}
	}
	switch maps {
	case 0:
		return IDs(items...), nil
	case len(items):
		ms := make([]map[string]any, len(items))
		for i, it := range items {
			if r, ok := it.(Record); ok {
				ms[i] = r
			} else {
				ms[i] = it.(map[string]any)
			}
		}
		return KeyValueSets(ms...), nil
	default:
		return NoID, fmt.Errorf("identifier mixes maps and scalars")
	}
}

// Kind returns the identifier's shape.
func (id Identifier) Kind() IdentifierKind { return id.kind }

// IsEmpty reports whether the identifier addresses nothing in particular.
func (id Identifier) IsEmpty() bool { return id.kind == KindNone }

// Scalar returns the value of a scalar identifier.
func (id Identifier) Scalar() any { return id.scalar }

// List returns the values of a list identifier.
func (id Identifier) List() []any { return id.list }

// Maps returns the column maps of a map or map-list identifier.
func (id Identifier) Maps() []map[string]any { return id.maps }

// Value returns the identifier in its natural dynamic form. It is what hooks
// see in Event.ID.
func (id Identifier) Value() any {
	switch id.kind {
	case KindScalar:
		return id.scalar
	case KindList:
		return id.list
	case KindMap:
		return id.maps[0]
	case KindMapList:
		return id.maps
	default:
		return nil
	}
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s(%v)", id.kind, id.Value())
}
