package internal

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/lychee-technology/rowstore"
)

// MemoryEngine is an in-process QueryEngine. Each table enforces uniqueness
// over the columns registered with Unique.
type MemoryEngine struct {
	mu      sync.Mutex
	tables  map[string]*memTable
	calls   []EngineCall
	failure error
}

// EngineCall records one statement executed by a MemoryEngine.
type EngineCall struct {
	Op    string
	Query rowstore.Query
	Rows  []rowstore.Record
}

type memTable struct {
	rows    []rowstore.Record
	unique  [][]string
	autoCol string
	nextID  int64
}

// NewMemoryEngine returns an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{tables: make(map[string]*memTable)}
}

func (e *MemoryEngine) table(name string) *memTable {
	t, ok := e.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		e.tables[name] = t
	}
	return t
}

// Unique declares a unique constraint over cols.
func (e *MemoryEngine) Unique(table string, cols ...string) *MemoryEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(table)
	t.unique = append(t.unique, cols)
	return e
}

// AutoIncrement makes col receive sequential ids when an insert leaves it
// empty.
func (e *MemoryEngine) AutoIncrement(table, col string) *MemoryEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table(table).autoCol = col
	return e
}

// Seed adds rows without recording calls or checking constraints. Generated
// ids continue after the largest seeded one.
func (e *MemoryEngine) Seed(table string, rows ...rowstore.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(table)
	for _, r := range rows {
		t.rows = append(t.rows, maps.Clone(r))
		if t.autoCol == "" {
			continue
		}
		if f, ok := toFloat(r[t.autoCol]); ok && int64(f) >= t.nextID {
			t.nextID = int64(f) + 1
		}
	}
}

// Rows returns a copy of every row in table.
func (e *MemoryEngine) Rows(table string) []rowstore.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(table)
	out := make([]rowstore.Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// Calls returns the statements executed so far.
func (e *MemoryEngine) Calls() []EngineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// CallCount counts executed statements of kind op.
func (e *MemoryEngine) CallCount(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded statements.
func (e *MemoryEngine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

// FailWith makes every following statement return err. A nil err clears it.
func (e *MemoryEngine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

func (e *MemoryEngine) record(op string, q *rowstore.Query, rows ...rowstore.Record) {
	c := EngineCall{Op: op, Rows: rows}
	if q != nil {
		c.Query = *q
	}
	e.calls = append(e.calls, c)
}

func (e *MemoryEngine) Select(ctx context.Context, q *rowstore.Query) ([]rowstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("select", q)
	if e.failure != nil {
		return nil, e.failure
	}
	rows, err := e.match(q)
	if err != nil {
		return nil, err
	}
	if len(q.GroupBy) > 0 {
		rows = groupRows(rows, q.GroupBy)
	}
	if len(q.OrderBy) > 0 {
		sortRows(rows, q.OrderBy)
	}
	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Offset:]
		}
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]rowstore.Record, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out, nil
}

func (e *MemoryEngine) Count(ctx context.Context, q *rowstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("count", q)
	if e.failure != nil {
		return 0, e.failure
	}
	rows, err := e.match(q)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (e *MemoryEngine) Insert(ctx context.Context, table string, row rowstore.Record, returning string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("insert", &rowstore.Query{Table: table}, row)
	if e.failure != nil {
		return nil, e.failure
	}
	t := e.table(table)
	stored, err := t.add(row)
	if err != nil {
		return nil, err
	}
	if returning == "" {
		return nil, nil
	}
	return stored[returning], nil
}

func (e *MemoryEngine) InsertBatch(ctx context.Context, table string, rows []rowstore.Record, batchSize int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("insertBatch", &rowstore.Query{Table: table}, rows...)
	if e.failure != nil {
		return 0, e.failure
	}
	t := e.table(table)
	var n int64
	for _, r := range rows {
		if _, err := t.add(r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (e *MemoryEngine) Update(ctx context.Context, q *rowstore.Query, set rowstore.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("update", q, set)
	if e.failure != nil {
		return 0, e.failure
	}
	rows, err := e.match(q)
	if err != nil {
		return 0, err
	}
	t := e.table(q.Table)
	for _, r := range rows {
		next := maps.Clone(r)
		maps.Copy(next, set)
		if err := t.checkUnique(next, r); err != nil {
			return 0, err
		}
	}
	for _, r := range rows {
		maps.Copy(r, set)
	}
	return int64(len(rows)), nil
}

func (e *MemoryEngine) Delete(ctx context.Context, q *rowstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("delete", q)
	if e.failure != nil {
		return 0, e.failure
	}
	t := e.table(q.Table)
	kept := t.rows[:0]
	var n int64
	for _, r := range t.rows {
		ok, err := matches(r, q.Where)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return n, nil
}

// match returns the live rows of q.Table satisfying q.Where.
func (e *MemoryEngine) match(q *rowstore.Query) ([]rowstore.Record, error) {
	t := e.table(q.Table)
	var out []rowstore.Record
	for _, r := range t.rows {
		ok, err := matches(r, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTable) add(row rowstore.Record) (rowstore.Record, error) {
	stored := maps.Clone(row)
	if t.autoCol != "" && !isSet(stored[t.autoCol]) {
		stored[t.autoCol] = t.nextID
		t.nextID++
	}
	if err := t.checkUnique(stored, nil); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, stored)
	return stored, nil
}

func (t *memTable) checkUnique(row, self rowstore.Record) error {
	for _, cols := range t.unique {
		for _, other := range t.rows {
			if self != nil && sameRow(other, self) {
				continue
			}
			dup := true
			for _, c := range cols {
				if !row.Has(c) || row[c] == nil || !looseEqual(other[c], row[c]) {
					dup = false
					break
				}
			}
			if dup {
				return rowstore.NewUniqueViolationError(fmt.Errorf("duplicate key (%s)", strings.Join(cols, ", ")))
			}
		}
	}
	return nil
}

// sameRow reports whether both maps are the same stored row.
func sameRow(a, b rowstore.Record) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

func bareColumn(col string) string {
	if i := strings.LastIndexByte(col, '.'); i >= 0 {
		return col[i+1:]
	}
	return col
}

func matches(row rowstore.Record, pred rowstore.Predicate) (bool, error) {
	for _, c := range pred {
		v, present := row[bareColumn(c.Column)]
		switch c.Op {
		case rowstore.OpEquals:
			if !present || v == nil || c.Value == nil || !looseEqual(v, c.Value) {
				return false, nil
			}
		case rowstore.OpNotEquals:
			if !present || v == nil || c.Value == nil || looseEqual(v, c.Value) {
				return false, nil
			}
		case rowstore.OpIn:
			found := false
			for _, want := range c.Values {
				if present && v != nil && want != nil && looseEqual(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case rowstore.OpIsNull:
			if present && v != nil {
				return false, nil
			}
		case rowstore.OpNotNull:
			if !present || v == nil {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return true, nil
}

func groupRows(rows []rowstore.Record, cols []string) []rowstore.Record {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprint(r[bareColumn(c)])
		}
		k := strings.Join(parts, "\x00")
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortRows(rows []rowstore.Record, order []rowstore.Order) {
	slices.SortStableFunc(rows, func(a, b rowstore.Record) int {
		for _, o := range order {
			col := bareColumn(o.Column)
			c := compareValues(a[col], b[col])
			if o.SortOrder == rowstore.SortOrderDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func looseEqual(a, b any) bool {
	return compareValues(a, b) == 0
}

// compareValues orders numbers numerically and everything else by its
// printed form. nil sorts first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
