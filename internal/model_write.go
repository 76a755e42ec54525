package internal

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/lychee-technology/rowstore"
)

// prepareRow runs the steps shared by every write: projection, field
// protection and validation. A nil row with a non-nil result means the row
// failed validation.
func (s *scope) prepareRow(ctx context.Context, op string, value any, onlyChanged bool) (rowstore.Record, *rowstore.WriteResult, error) {
	cfg := s.m.cfg
	row, err := projectRecord(value, cfg.PrimaryKey, cfg.DateFormat, onlyChanged)
	if err != nil {
		return nil, nil, err
	}
	if len(row) == 0 {
		return nil, nil, rowstore.NewEmptyDatasetError(op)
	}
	row = s.m.protect(row)
	if len(row) == 0 {
		return nil, nil, rowstore.NewEmptyDatasetError(op)
	}
	if !cfg.SkipValidation && s.m.validator != nil {
		if v := s.m.validator.Validate(ctx, row, op == "update"); len(v) > 0 {
			s.m.log.Debugw("validation failed", "table", cfg.Table, "op", op, "violations", v)
			return nil, &rowstore.WriteResult{OK: false, Violations: v}, nil
		}
	}
	return row, nil, nil
}

// protect drops columns that are not in AllowedFields.
func (m *model) protect(row rowstore.Record) rowstore.Record {
	if !m.cfg.ProtectFields || len(m.cfg.AllowedFields) == 0 {
		return row
	}
	return maskRecord(row, m.cfg.AllowedFields)
}

// stamp sets the created and updated columns the caller left out.
func (m *model) stamp(row rowstore.Record, created bool) {
	if !m.cfg.UseTimestamps {
		return
	}
	now := formatTime(m.now(), m.cfg.DateFormat)
	if created && m.cfg.CreatedField != "" && !row.Has(m.cfg.CreatedField) {
		row[m.cfg.CreatedField] = now
	}
	if m.cfg.UpdatedField != "" && !row.Has(m.cfg.UpdatedField) {
		row[m.cfg.UpdatedField] = now
	}
}

// insertTarget returns the column whose generated value is read back, and
// removes it from row when the caller left it empty.
func (m *model) insertTarget(row rowstore.Record) string {
	if !m.cfg.AutoIncrement {
		return ""
	}
	col := m.cfg.IncrementColumn()
	if v, ok := row[col]; ok && !isSet(v) {
		delete(row, col)
	}
	return col
}

// insertID reports the key of a freshly inserted row.
func (m *model) insertID(row rowstore.Record, generated any) any {
	if m.cfg.AutoIncrement {
		if generated != nil {
			return generated
		}
		return row[m.cfg.IncrementColumn()]
	}
	pk := m.cfg.PrimaryKey
	if pk.Single() {
		return row[pk[0]]
	}
	return map[string]any(maskRecord(row, pk))
}

func (s *scope) insert(ctx context.Context, value any) (*rowstore.WriteResult, error) {
	start := time.Now()
	row, failed, err := s.prepareRow(ctx, "insert", value, false)
	if err != nil || failed != nil {
		return failed, err
	}
	s.m.stamp(row, true)

	opID := newOpID()
	d := s.dispatcher()
	before := &rowstore.Event{Name: rowstore.BeforeInsert, Method: "insert", OpID: opID, Data: row}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(s.m.cfg.Table, "insert")
		return outcomeOrOK(before.Outcome), nil
	}
	row = before.Data
	if len(row) == 0 {
		return nil, rowstore.NewEmptyDatasetError("insert")
	}
	if !s.m.cfg.AutoIncrement && !allKeysSet(s.m.cfg.PrimaryKey, row) {
		return nil, rowstore.NewEmptyPrimaryKeyError("insert")
	}

	returning := s.m.insertTarget(row)
	generated, err := s.m.engine.Insert(ctx, s.m.cfg.Table, row, returning)
	s.m.metrics.observe(s.m.cfg.Table, "insert", start, err)
	if err != nil {
		return nil, engineError("insert", err)
	}
	id := s.m.insertID(row, generated)
	s.m.log.Debugw("insert", "table", s.m.cfg.Table, "op_id", opID, "insert_id", id)

	out := &rowstore.WriteResult{OK: true, Affected: 1, InsertID: id}
	after := &rowstore.Event{Name: rowstore.AfterInsert, Method: "insert", OpID: opID, ID: id, InsertID: id, Data: row, Outcome: out}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return out, nil
}

// insertBatch writes rows without firing hooks.
func (s *scope) insertBatch(ctx context.Context, values []any, batchSize int) (*rowstore.WriteResult, error) {
	start := time.Now()
	if len(values) == 0 {
		return nil, rowstore.NewEmptyDatasetError("insertBatch")
	}
	rows := make([]rowstore.Record, 0, len(values))
	for i, v := range values {
		row, failed, err := s.prepareRow(ctx, "insertBatch", v, false)
		if err != nil {
			return nil, err
		}
		if failed != nil {
			violations := make(rowstore.Violations, len(failed.Violations))
			for field, msgs := range failed.Violations {
				violations[fmt.Sprintf("%d.%s", i, field)] = msgs
			}
			return &rowstore.WriteResult{OK: false, Violations: violations}, nil
		}
		if !s.m.cfg.AutoIncrement && !allKeysSet(s.m.cfg.PrimaryKey, row) {
			return nil, rowstore.NewEmptyPrimaryKeyError("insertBatch")
		}
		s.m.insertTarget(row)
		s.m.stamp(row, true)
		rows = append(rows, row)
	}

	n, err := s.m.engine.InsertBatch(ctx, s.m.cfg.Table, rows, batchSize)
	s.m.metrics.observe(s.m.cfg.Table, "insertBatch", start, err)
	if err != nil {
		return nil, engineError("insertBatch", err)
	}
	s.m.log.Debugw("insertBatch", "table", s.m.cfg.Table, "rows", len(rows), "affected", n)
	return &rowstore.WriteResult{OK: true, Affected: n}, nil
}

// Update writes value to the rows addressed by id and the scope.
func (s *scope) Update(ctx context.Context, id rowstore.Identifier, value any) (*rowstore.WriteResult, error) {
	defer s.reset()
	return s.update(ctx, id, value)
}

func (s *scope) update(ctx context.Context, id rowstore.Identifier, value any) (*rowstore.WriteResult, error) {
	return s.updateWith(ctx, id, value, nil)
}

// updateWith is update with extra assignments applied after projection and
// field protection.
func (s *scope) updateWith(ctx context.Context, id rowstore.Identifier, value any, extra rowstore.Record) (*rowstore.WriteResult, error) {
	start := time.Now()
	pred, _, err := s.m.resolver(s.m.cfg.PrimaryKey).resolve(id)
	if err != nil {
		return nil, err
	}
	if pred.Empty() && s.where.Empty() {
		return nil, rowstore.NewEmptyPrimaryKeyError("update")
	}
	row, failed, err := s.prepareRow(ctx, "update", value, true)
	if err != nil || failed != nil {
		return failed, err
	}
	s.m.stamp(row, false)
	maps.Copy(row, extra)

	opID := newOpID()
	d := s.dispatcher()
	before := &rowstore.Event{Name: rowstore.BeforeUpdate, Method: "update", OpID: opID, ID: id.Value(), Data: row}
	if err := d.fire(ctx, before); err != nil {
		return nil, err
	}
	if before.ReturnData {
		s.m.metrics.shortCircuit(s.m.cfg.Table, "update")
		return outcomeOrOK(before.Outcome), nil
	}
	row = before.Data
	if len(row) == 0 {
		return nil, rowstore.NewEmptyDatasetError("update")
	}

	n, err := s.m.engine.Update(ctx, s.writeQuery(pred), row)
	s.m.metrics.observe(s.m.cfg.Table, "update", start, err)
	if err != nil {
		return nil, engineError("update", err)
	}
	s.m.log.Debugw("update", "table", s.m.cfg.Table, "op_id", opID, "affected", n)

	out := &rowstore.WriteResult{OK: true, Affected: n}
	after := &rowstore.Event{Name: rowstore.AfterUpdate, Method: "update", OpID: opID, ID: id.Value(), Data: row, Outcome: out}
	if err := d.fire(ctx, after); err != nil {
		return nil, err
	}
	return out, nil
}

func outcomeOrOK(out *rowstore.WriteResult) *rowstore.WriteResult {
	if out == nil {
		return &rowstore.WriteResult{OK: true}
	}
	return out
}
