package internal

import (
	"context"
	"slices"
	"time"

	"github.com/lychee-technology/rowstore"
)

// Find returns the rows addressed by id through the primary key.
func (s *scope) Find(ctx context.Context, id rowstore.Identifier) (*rowstore.Result, error) {
	defer s.reset()
	return s.find(ctx, "find", id, s.m.cfg.PrimaryKey)
}

// FindAll returns a page of rows matching the scope.
func (s *scope) FindAll(ctx context.Context, limit, offset int) (*rowstore.Result, error) {
	defer s.reset()
	start := time.Now()
	opID := newOpID()
	d := s.dispatcher()

	before := &rowstore.Event{Name: rowstore.BeforeFind, Method: "findAll", OpID: opID, Limit: limit, Offset: offset}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(s.m.cfg.Table, "findAll")
		return resultOrEmpty(before.Result, false), nil
	}

	q := s.query(nil)
	q.Limit, q.Offset = limit, offset
	rows, err := s.m.engine.Select(ctx, q)
	s.m.metrics.observe(s.m.cfg.Table, "findAll", start, err)
	if err != nil {
		return nil, engineError("findAll", err)
	}
	s.m.log.Debugw("findAll", "table", s.m.cfg.Table, "op_id", opID, "rows", len(rows))

	after := &rowstore.Event{Name: rowstore.AfterFind, Method: "findAll", OpID: opID, Limit: limit, Offset: offset,
		Result: &rowstore.Result{Rows: rows}}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return resultOrEmpty(after.Result, false), nil
}

// FindAlt looks rows up by a registered alternate key, or by the primary key
// when columns name it.
func (s *scope) FindAlt(ctx context.Context, columns []string, id rowstore.Identifier) (*rowstore.Result, error) {
	defer s.reset()
	pk := s.m.cfg.PrimaryKey
	if pk.SameColumns(columns) {
		return s.find(ctx, "find", alignIdentifier(columns, pk, id), pk)
	}
	alt, ok := rowstore.AltKeys(s.m.cfg.AltKeys).Match(columns)
	if !ok {
		return nil, rowstore.NewUnknownKeyError(columns, s.m.cfg.Name())
	}
	return s.find(ctx, "findAlt", alignIdentifier(columns, alt, id), alt)
}

// FindAltBy is FindAlt with the columns taken from a value map.
func (s *scope) FindAltBy(ctx context.Context, values map[string]any) (*rowstore.Result, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return s.FindAlt(ctx, cols, rowstore.KeyValues(values))
}

// First returns the first matching row or nil.
func (s *scope) First(ctx context.Context) (rowstore.Record, error) {
	defer s.reset()
	start := time.Now()
	opID := newOpID()
	d := s.dispatcher()
	pk := s.m.cfg.PrimaryKey

	before := &rowstore.Event{Name: rowstore.BeforeFind, Method: "first", OpID: opID, Singleton: true}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(s.m.cfg.Table, "first")
		return before.Result.First(), nil
	}

	q := s.query(nil)
	if s.m.policy.enabled() && s.mode == modeWithDeleted && len(q.GroupBy) == 0 {
		r := s.m.resolver(nil)
		for _, col := range pk {
			q.GroupBy = append(q.GroupBy, r.column(col))
		}
	}
	if len(q.GroupBy) > 0 && len(q.OrderBy) == 0 {
		r := s.m.resolver(nil)
		for _, col := range pk {
			q.OrderBy = append(q.OrderBy, rowstore.Order{Column: r.column(col), SortOrder: rowstore.SortOrderAsc})
		}
	}
	q.Limit = 1

	rows, err := s.m.engine.Select(ctx, q)
	s.m.metrics.observe(s.m.cfg.Table, "first", start, err)
	if err != nil {
		return nil, engineError("first", err)
	}
	if len(rows) > 1 {
		rows = rows[:1]
	}

	after := &rowstore.Event{Name: rowstore.AfterFind, Method: "first", OpID: opID, Singleton: true,
		Result: &rowstore.Result{Singleton: true, Rows: rows}}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return after.Result.First(), nil
}

// CountAllResults counts rows matching the scope. The soft delete filter is
// merged into the scope on the first call; with reset false later calls on
// the same scope reuse it instead of adding it again.
func (s *scope) CountAllResults(ctx context.Context, reset bool) (int64, error) {
	if reset {
		defer s.reset()
	}
	start := time.Now()
	if !s.filterApplied {
		if c, ok := s.m.policy.filter(s.mode); ok {
			s.where = append(s.where, c)
		}
		s.filterApplied = true
	}
	q := s.query(nil)
	n, err := s.m.engine.Count(ctx, q)
	s.m.metrics.observe(s.m.cfg.Table, "count", start, err)
	if err != nil {
		return 0, engineError("count", err)
	}
	return n, nil
}

// find runs the find flow for id against key.
func (s *scope) find(ctx context.Context, method string, id rowstore.Identifier, key rowstore.Key) (*rowstore.Result, error) {
	start := time.Now()
	pred, singleton, err := s.m.resolver(key).resolve(id)
	if err != nil {
		return nil, err
	}
	opID := newOpID()
	d := s.dispatcher()

	before := &rowstore.Event{Name: rowstore.BeforeFind, Method: method, OpID: opID, ID: id.Value(), Singleton: singleton}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(s.m.cfg.Table, method)
		return resultOrEmpty(before.Result, singleton), nil
	}

	q := s.query(pred)
	if singleton {
		q.Limit = 1
	}
	rows, err := s.m.engine.Select(ctx, q)
	s.m.metrics.observe(s.m.cfg.Table, method, start, err)
	if err != nil {
		return nil, engineError(method, err)
	}
	s.m.log.Debugw("find", "table", s.m.cfg.Table, "op", method, "op_id", opID, "singleton", singleton,
		"mode", s.mode.String(), "rows", len(rows))

	after := &rowstore.Event{Name: rowstore.AfterFind, Method: method, OpID: opID, ID: id.Value(), Singleton: singleton,
		Result: &rowstore.Result{Singleton: singleton, Rows: rows}}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return resultOrEmpty(after.Result, singleton), nil
}

// alignIdentifier rewrites a positional list given in the caller's column
// order into a column map, so it resolves correctly against key.
func alignIdentifier(columns []string, key rowstore.Key, id rowstore.Identifier) rowstore.Identifier {
	if id.Kind() == rowstore.KindScalar && len(columns) == 1 {
		return id
	}
	if id.Kind() != rowstore.KindList || len(id.List()) != len(columns) || slices.Equal(columns, key) {
		return id
	}
	if len(columns) == 1 {
		return id
	}
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		m[c] = id.List()[i]
	}
	return rowstore.KeyValues(m)
}

func resultOrEmpty(r *rowstore.Result, singleton bool) *rowstore.Result {
	if r == nil {
		return &rowstore.Result{Singleton: singleton}
	}
	return r
}
