package internal

import (
	"context"
	"time"

	"github.com/lychee-technology/rowstore"
)

// Delete removes the rows addressed by id and the scope. With soft deletes
// enabled and purge false the rows are marked instead. An empty predicate is
// refused.
func (s *scope) Delete(ctx context.Context, id rowstore.Identifier, purge bool) (*rowstore.WriteResult, error) {
	defer s.reset()
	start := time.Now()
	cfg := s.m.cfg

	pred, _, err := s.m.resolver(cfg.PrimaryKey).resolve(id)
	if err != nil {
		return nil, err
	}
	opID := newOpID()
	d := s.dispatcher()

	before := &rowstore.Event{Name: rowstore.BeforeDelete, Method: "delete", OpID: opID, ID: id.Value(), Purge: purge}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(cfg.Table, "delete")
		return outcomeOrOK(before.Outcome), nil
	}

	q := s.writeQuery(pred)
	if q.Where.Empty() {
		s.m.log.Debugw("refusing unscoped delete", "table", cfg.Table, "op_id", opID, "purge", purge)
		if cfg.Strict {
			return nil, rowstore.NewUnscopedDeleteError()
		}
		return &rowstore.WriteResult{OK: false}, nil
	}

	var n int64
	op := "delete"
	if s.m.policy.enabled() && !purge {
		op = "softDelete"
		n, err = s.m.engine.Update(ctx, q, s.m.policy.mark(s.m.now(), cfg))
	} else {
		n, err = s.m.engine.Delete(ctx, q)
	}
	s.m.metrics.observe(cfg.Table, op, start, err)
	if err != nil {
		return nil, engineError(op, err)
	}
	s.m.log.Debugw("delete", "table", cfg.Table, "op", op, "op_id", opID, "affected", n)

	out := &rowstore.WriteResult{OK: true, Affected: n}
	after := &rowstore.Event{Name: rowstore.AfterDelete, Method: "delete", OpID: opID, ID: id.Value(), Purge: purge, Outcome: out}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return out, nil
}

// purgeDeleted permanently removes soft deleted rows.
func (s *scope) purgeDeleted(ctx context.Context) (*rowstore.WriteResult, error) {
	if !s.m.policy.enabled() {
		return &rowstore.WriteResult{OK: true}, nil
	}
	start := time.Now()
	q := &rowstore.Query{Table: s.m.cfg.Table, Where: rowstore.Predicate{s.m.policy.deletedCondition()}}
	n, err := s.m.engine.Delete(ctx, q)
	s.m.metrics.observe(s.m.cfg.Table, "purge", start, err)
	if err != nil {
		return nil, engineError("purge", err)
	}
	s.m.log.Debugw("purgeDeleted", "table", s.m.cfg.Table, "affected", n)
	return &rowstore.WriteResult{OK: true, Affected: n}, nil
}
