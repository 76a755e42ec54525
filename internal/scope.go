package internal

import (
	"github.com/lychee-technology/rowstore"
)

// scope carries the conditions and modes of one logical call chain. It is
// not safe for concurrent use.
type scope struct {
	m         *model
	where     rowstore.Predicate
	orderBy   []rowstore.Order
	groupBy   []string
	mode      deleteMode
	callbacks bool
	// filterApplied is set once CountAllResults merged the soft delete
	// filter into where.
	filterApplied bool
}

func (m *model) newScope() *scope {
	return &scope{m: m, callbacks: m.cfg.AllowCallbacks}
}

func (s *scope) reset() {
	s.where = nil
	s.orderBy = nil
	s.groupBy = nil
	s.mode = modeNormal
	s.callbacks = s.m.cfg.AllowCallbacks
	s.filterApplied = false
}

func (s *scope) Where(column string, value any) rowstore.Scope {
	col := s.m.resolver(nil).column(column)
	if isMultiValue(value) {
		s.where = append(s.where, rowstore.In(col, toValues(value)...))
		return s
	}
	if value == nil {
		s.where = append(s.where, rowstore.IsNull(col))
		return s
	}
	s.where = append(s.where, rowstore.Eq(col, value))
	return s
}

func (s *scope) WhereIn(column string, values ...any) rowstore.Scope {
	s.where = append(s.where, rowstore.In(s.m.resolver(nil).column(column), values...))
	return s
}

func (s *scope) WhereNull(column string) rowstore.Scope {
	s.where = append(s.where, rowstore.IsNull(s.m.resolver(nil).column(column)))
	return s
}

func (s *scope) OrderBy(column string, order rowstore.SortOrder) rowstore.Scope {
	if order == "" {
		order = rowstore.SortOrderAsc
	}
	s.orderBy = append(s.orderBy, rowstore.Order{Column: s.m.resolver(nil).column(column), SortOrder: order})
	return s
}

func (s *scope) GroupBy(columns ...string) rowstore.Scope {
	for _, c := range columns {
		s.groupBy = append(s.groupBy, s.m.resolver(nil).column(c))
	}
	return s
}

func (s *scope) OnlyDeleted() rowstore.Scope {
	s.mode = modeOnlyDeleted
	return s
}

func (s *scope) WithDeleted() rowstore.Scope {
	s.mode = modeWithDeleted
	return s
}

func (s *scope) WithoutCallbacks() rowstore.Scope {
	s.callbacks = false
	return s
}

func (s *scope) dispatcher() hookDispatcher {
	return hookDispatcher{hooks: s.m.hooks, enabled: s.callbacks}
}

// query builds a read statement from the scope plus extra. The soft delete
// filter is added unless CountAllResults already merged it.
func (s *scope) query(extra rowstore.Predicate) *rowstore.Query {
	where := s.where.And(extra...)
	if !s.filterApplied {
		if c, ok := s.m.policy.filter(s.mode); ok {
			where = append(where, c)
		}
	}
	return &rowstore.Query{
		Table:   s.m.cfg.Table,
		Where:   where,
		GroupBy: append([]string(nil), s.groupBy...),
		OrderBy: append([]rowstore.Order(nil), s.orderBy...),
	}
}

// writeQuery builds a mutation statement. It never carries a soft delete
// filter.
func (s *scope) writeQuery(extra rowstore.Predicate) *rowstore.Query {
	return &rowstore.Query{
		Table: s.m.cfg.Table,
		Where: s.where.And(extra...),
	}
}
