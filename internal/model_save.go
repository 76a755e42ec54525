package internal

import (
	"context"
	"errors"

	"github.com/lychee-technology/rowstore"
)

// save inserts value or updates the row it names. The probe and the write are
// not atomic, so a lost race flips the decision once: a duplicate key on
// insert retries as an update and an update that touched nothing retries as
// an insert. A duplicate only counts as the key once the key row is seen.
func (s *scope) save(ctx context.Context, value any) (*rowstore.WriteResult, error) {
	cfg := s.m.cfg
	pk := cfg.PrimaryKey

	if ct, ok := value.(rowstore.ChangeTrackingRecord); ok && len(ct.RawFields(true)) == 0 {
		return &rowstore.WriteResult{OK: true}, nil
	}
	row, err := projectRecord(value, pk, cfg.DateFormat, false)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return &rowstore.WriteResult{OK: true}, nil
	}

	if !pk.IsComposite() {
		v := row[pk[0]]
		if !isSet(v) {
			return s.insert(ctx, value)
		}
		res, err := s.update(ctx, rowstore.ID(v), value)
		if err != nil || !res.OK || res.Affected > 0 || cfg.AutoIncrement {
			return res, err
		}
		s.m.metrics.flip(cfg.Table, "update")
		return s.insertAfterEmptyUpdate(ctx, value, rowstore.Record{pk[0]: v}, res)
	}

	keyRow := dropUnset(maskRecord(row, pk))
	fullKey := len(keyRow) == len(pk)
	if !cfg.AutoIncrement && fullKey {
		n, err := s.probe(ctx, keyRow)
		if err != nil {
			return nil, err
		}
		if n == 1 {
			res, err := s.update(ctx, rowstore.KeyValues(keyRow), value)
			if err != nil || !res.OK || res.Affected > 0 {
				return res, err
			}
			s.m.metrics.flip(cfg.Table, "update")
			return s.insertAfterEmptyUpdate(ctx, value, keyRow, res)
		}
	}

	res, err := s.insert(ctx, value)
	if err == nil || !fullKey || !errors.Is(err, rowstore.ErrUniqueViolation) {
		return res, err
	}
	s.m.log.Debugw("save: duplicate on insert, retrying as update", "table", cfg.Table, "key", keyRow)
	s.m.metrics.flip(cfg.Table, "insert")
	// The row may be soft deleted; saving it makes it live again.
	updated, uerr := s.updateWith(ctx, rowstore.KeyValues(keyRow), value, s.m.policy.restore())
	if uerr != nil || !updated.OK || updated.Affected > 0 {
		return updated, uerr
	}
	return s.confirmKey(ctx, keyRow, updated, err)
}

// probe counts the live rows carrying keyRow.
func (s *scope) probe(ctx context.Context, keyRow rowstore.Record) (int64, error) {
	pred, _, err := s.m.resolver(s.m.cfg.PrimaryKey).resolve(rowstore.KeyValues(keyRow))
	if err != nil {
		return 0, err
	}
	n, err := s.m.engine.Count(ctx, s.query(pred))
	if err != nil {
		return 0, engineError("save", err)
	}
	return n, nil
}

// insertAfterEmptyUpdate is the single retry after an update matched no row.
// Some engines report zero affected rows when the values did not change, so
// a duplicate here is success when the key row exists.
func (s *scope) insertAfterEmptyUpdate(ctx context.Context, value any, keyRow rowstore.Record, updated *rowstore.WriteResult) (*rowstore.WriteResult, error) {
	res, err := s.insert(ctx, value)
	if err == nil || !errors.Is(err, rowstore.ErrUniqueViolation) {
		return res, err
	}
	return s.confirmKey(ctx, keyRow, updated, err)
}

// confirmKey returns updated when a row carrying keyRow exists, deleted or
// not, and dupErr otherwise: the duplicate was on another unique column.
func (s *scope) confirmKey(ctx context.Context, keyRow rowstore.Record, updated *rowstore.WriteResult, dupErr error) (*rowstore.WriteResult, error) {
	pred, _, err := s.m.resolver(s.m.cfg.PrimaryKey).resolve(rowstore.KeyValues(keyRow))
	if err != nil {
		return nil, err
	}
	n, err := s.m.engine.Count(ctx, s.writeQuery(pred))
	if err != nil {
		return nil, engineError("save", err)
	}
	if n == 0 {
		s.m.log.Debugw("save: duplicate on another unique column", "table", s.m.cfg.Table, "key", keyRow)
		return nil, dupErr
	}
	return updated, nil
}
