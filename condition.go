package rowstore

import (
	"fmt"
	"strings"
)

// Operator is a comparison supported by every QueryEngine.
type Operator string

const (
	OpEquals    Operator = "="
	OpNotEquals Operator = "!="
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpNotNull   Operator = "IS NOT NULL"
)

// Condition is one column test. Values is used by OpIn, Value by the binary
// operators, and neither by the null checks.
type Condition struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Value  any      `json:"value,omitempty"`
	Values []any    `json:"values,omitempty"`
}

// Eq builds column = value.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEquals, Value: value}
}

// In builds column IN (values...).
func In(column string, values ...any) Condition {
	return Condition{Column: column, Op: OpIn, Values: values}
}

// IsNull builds column IS NULL.
func IsNull(column string) Condition {
	return Condition{Column: column, Op: OpIsNull}
}

// NotNull builds column IS NOT NULL.
func NotNull(column string) Condition {
	return Condition{Column: column, Op: OpNotNull}
}

func (c Condition) String() string {
	switch c.Op {
	case OpIsNull, OpNotNull:
		return c.Column + " " + string(c.Op)
	case OpIn:
		parts := make([]string, len(c.Values))
		for i, v := range c.Values {
			parts[i] = fmt.Sprintf("%v", v)
		}
		return c.Column + " IN (" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Value)
	}
}

// Predicate is a conjunction of conditions. An empty predicate matches every
// row.
type Predicate []Condition

// Empty reports whether the predicate has no conditions.
func (p Predicate) Empty() bool { return len(p) == 0 }

// And returns a new predicate holding p followed by more.
func (p Predicate) And(more ...Condition) Predicate {
	out := make(Predicate, 0, len(p)+len(more))
	out = append(out, p...)
	return append(out, more...)
}

func (p Predicate) String() string {
	if len(p) == 0 {
		return "TRUE"
	}
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Query is the statement handed to a QueryEngine.
type Query struct {
	Table   string    `json:"table"`
	Where   Predicate `json:"where,omitempty"`
	GroupBy []string  `json:"groupBy,omitempty"`
	OrderBy []Order   `json:"orderBy,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}
