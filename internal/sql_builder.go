package internal

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lychee-technology/rowstore"
)

// placeholderStyle selects how bound parameters are written.
type placeholderStyle int

const (
	dollarPlaceholders placeholderStyle = iota
	questionPlaceholders
)

// sqlBuilder renders rowstore queries as SQL text with bound arguments.
type sqlBuilder struct {
	style placeholderStyle
	sb    strings.Builder
	args  []any
}

func newSQLBuilder(style placeholderStyle) *sqlBuilder {
	return &sqlBuilder{style: style}
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	if b.style == questionPlaceholders {
		return "?"
	}
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *sqlBuilder) result() (string, []any) {
	return b.sb.String(), b.args
}

func (b *sqlBuilder) where(pred rowstore.Predicate) error {
	if len(pred) == 0 {
		return nil
	}
	b.write(" WHERE ")
	for i, c := range pred {
		if i > 0 {
			b.write(" AND ")
		}
		if err := b.condition(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *sqlBuilder) condition(c rowstore.Condition) error {
	col := sanitizeIdentifier(c.Column)
	switch c.Op {
	case rowstore.OpEquals, rowstore.OpNotEquals:
		op := "="
		if c.Op == rowstore.OpNotEquals {
			op = "<>"
		}
		b.write(col, " ", op, " ", b.bind(c.Value))
	case rowstore.OpIn:
		if len(c.Values) == 0 {
			b.write("1 = 0")
			return nil
		}
		ph := make([]string, len(c.Values))
		for i, v := range c.Values {
			ph[i] = b.bind(v)
		}
		b.write(col, " IN (", strings.Join(ph, ", "), ")")
	case rowstore.OpIsNull:
		b.write(col, " IS NULL")
	case rowstore.OpNotNull:
		b.write(col, " IS NOT NULL")
	default:
		return fmt.Errorf("unsupported operator %q", c.Op)
	}
	return nil
}

func (b *sqlBuilder) tail(q *rowstore.Query) {
	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, c := range q.GroupBy {
			cols[i] = sanitizeIdentifier(c)
		}
		b.write(" GROUP BY ", strings.Join(cols, ", "))
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.SortOrder == rowstore.SortOrderDesc {
				dir = "DESC"
			}
			terms[i] = sanitizeIdentifier(o.Column) + " " + dir
		}
		b.write(" ORDER BY ", strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		b.write(" LIMIT ", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		b.write(" OFFSET ", strconv.Itoa(q.Offset))
	}
}

func buildSelect(q *rowstore.Query, style placeholderStyle) (string, []any, error) {
	b := newSQLBuilder(style)
	b.write("SELECT * FROM ", sanitizeIdentifier(q.Table))
	if err := b.where(q.Where); err != nil {
		return "", nil, err
	}
	b.tail(q)
	sql, args := b.result()
	return sql, args, nil
}

func buildCount(q *rowstore.Query, style placeholderStyle) (string, []any, error) {
	b := newSQLBuilder(style)
	if len(q.GroupBy) > 0 {
		b.write("SELECT COUNT(*) FROM (SELECT 1 FROM ", sanitizeIdentifier(q.Table))
		if err := b.where(q.Where); err != nil {
			return "", nil, err
		}
		b.tail(&rowstore.Query{GroupBy: q.GroupBy})
		b.write(") AS grouped")
	} else {
		b.write("SELECT COUNT(*) FROM ", sanitizeIdentifier(q.Table))
		if err := b.where(q.Where); err != nil {
			return "", nil, err
		}
	}
	sql, args := b.result()
	return sql, args, nil
}

func buildInsert(table string, row rowstore.Record, returning string, style placeholderStyle) (string, []any) {
	cols := row.Columns()
	b := newSQLBuilder(style)
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sanitizeIdentifier(c)
		ph[i] = b.bind(row[c])
	}
	b.write("INSERT INTO ", sanitizeIdentifier(table), " (", strings.Join(quoted, ", "), ") VALUES (", strings.Join(ph, ", "), ")")
	if returning != "" {
		b.write(" RETURNING ", sanitizeIdentifier(returning))
	}
	return b.result()
}

// buildInsertBatch renders one multi row insert over the union of the rows'
// columns. Missing values are bound as NULL.
func buildInsertBatch(table string, rows []rowstore.Record, style placeholderStyle) (string, []any) {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		for c := range r {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				cols = append(cols, c)
			}
		}
	}
	slices.Sort(cols)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sanitizeIdentifier(c)
	}
	b := newSQLBuilder(style)
	b.write("INSERT INTO ", sanitizeIdentifier(table), " (", strings.Join(quoted, ", "), ") VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.write(", ")
		}
		ph := make([]string, len(cols))
		for j, c := range cols {
			ph[j] = b.bind(r[c])
		}
		b.write("(", strings.Join(ph, ", "), ")")
	}
	return b.result()
}

func buildUpdate(q *rowstore.Query, set rowstore.Record, style placeholderStyle) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, fmt.Errorf("update of %s has no assignments", q.Table)
	}
	b := newSQLBuilder(style)
	cols := set.Columns()
	assigns := make([]string, len(cols))
	for i, c := range cols {
		assigns[i] = sanitizeIdentifier(c) + " = " + b.bind(set[c])
	}
	b.write("UPDATE ", sanitizeIdentifier(q.Table), " SET ", strings.Join(assigns, ", "))
	if err := b.where(q.Where); err != nil {
		return "", nil, err
	}
	sql, args := b.result()
	return sql, args, nil
}

func buildDelete(q *rowstore.Query, style placeholderStyle) (string, []any, error) {
	b := newSQLBuilder(style)
	b.write("DELETE FROM ", sanitizeIdentifier(q.Table))
	if err := b.where(q.Where); err != nil {
		return "", nil, err
	}
	sql, args := b.result()
	return sql, args, nil
}

// chunkRows splits rows into slices of at most size rows.
func chunkRows(rows []rowstore.Record, size int) [][]rowstore.Record {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]rowstore.Record
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

const defaultBatchSize = 500
