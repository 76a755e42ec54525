package internal

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// GormEngine executes rowstore queries through a gorm connection. It is used
// for MySQL, where affected row counts ignore rows whose values did not
// change.
type GormEngine struct {
	db         *gorm.DB
	logQueries bool
}

// NewGormEngine wraps db.
func NewGormEngine(db *gorm.DB, logQueries bool) *GormEngine {
	return &GormEngine{db: db, logQueries: logQueries}
}

func (e *GormEngine) session(ctx context.Context, table string) *gorm.DB {
	tx := e.db.WithContext(ctx)
	if e.logQueries {
		tx = tx.Debug()
	}
	return tx.Table(table)
}

// scoped applies the where clause of q.
func (e *GormEngine) scoped(ctx context.Context, q *rowstore.Query) (*gorm.DB, error) {
	tx := e.session(ctx, q.Table)
	for _, c := range q.Where {
		expr, err := gormExpression(c)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	return tx, nil
}

func gormExpression(c rowstore.Condition) (clause.Expression, error) {
	col := clause.Column{Name: c.Column}
	switch c.Op {
	case rowstore.OpEquals:
		return clause.Eq{Column: col, Value: c.Value}, nil
	case rowstore.OpNotEquals:
		return clause.Neq{Column: col, Value: c.Value}, nil
	case rowstore.OpIn:
		if len(c.Values) == 0 {
			return clause.Expr{SQL: "1 = 0"}, nil
		}
		return clause.IN{Column: col, Values: c.Values}, nil
	case rowstore.OpIsNull:
		return clause.Eq{Column: col, Value: nil}, nil
	case rowstore.OpNotNull:
		return clause.Neq{Column: col, Value: nil}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", c.Op)
}

func (e *GormEngine) Select(ctx context.Context, q *rowstore.Query) ([]rowstore.Record, error) {
	tx, err := e.scoped(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, g := range q.GroupBy {
		tx = tx.Group(g)
	}
	for _, o := range q.OrderBy {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: o.Column},
			Desc:   o.SortOrder == rowstore.SortOrderDesc,
		})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	out := make([]rowstore.Record, len(rows))
	for i, r := range rows {
		rec := make(rowstore.Record, len(r))
		for k, v := range r {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[k] = v
		}
		out[i] = rec
	}
	return out, nil
}

func (e *GormEngine) Count(ctx context.Context, q *rowstore.Query) (int64, error) {
	tx, err := e.scoped(ctx, q)
	if err != nil {
		return 0, err
	}
	// gorm counts the returned groups when a GROUP BY is present.
	for _, g := range q.GroupBy {
		tx = tx.Group(g)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Table, err)
	}
	return n, nil
}

// Insert creates one row. Maps are not back filled by gorm, so the generated
// id is read with LAST_INSERT_ID on the same connection.
func (e *GormEngine) Insert(ctx context.Context, table string, row rowstore.Record, returning string) (any, error) {
	var id any
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.logQueries {
			tx = tx.Debug()
		}
		if err := tx.Table(table).Create(map[string]any(row)).Error; err != nil {
			return err
		}
		if returning == "" {
			return nil
		}
		var last int64
		if err := tx.Raw("SELECT LAST_INSERT_ID()").Scan(&last).Error; err != nil {
			return err
		}
		id = last
		return nil
	})
	if err != nil {
		return nil, classifyGormError(table, "insert into", err)
	}
	return id, nil
}

func (e *GormEngine) InsertBatch(ctx context.Context, table string, rows []rowstore.Record, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	values := make([]map[string]any, len(rows))
	for i, r := range rows {
		values[i] = r
	}
	res := e.session(ctx, table).CreateInBatches(values, batchSize)
	if res.Error != nil {
		return res.RowsAffected, classifyGormError(table, "insert batch into", res.Error)
	}
	return res.RowsAffected, nil
}

func (e *GormEngine) Update(ctx context.Context, q *rowstore.Query, set rowstore.Record) (int64, error) {
	if len(set) == 0 {
		return 0, fmt.Errorf("update of %s has no assignments", q.Table)
	}
	tx, err := e.scoped(ctx, q)
	if err != nil {
		return 0, err
	}
	res := tx.Updates(map[string]any(set))
	if res.Error != nil {
		return 0, classifyGormError(q.Table, "update", res.Error)
	}
	return res.RowsAffected, nil
}

func (e *GormEngine) Delete(ctx context.Context, q *rowstore.Query) (int64, error) {
	tx, err := e.scoped(ctx, q)
	if err != nil {
		return 0, err
	}
	res := tx.Delete(nil)
	if res.Error != nil {
		return 0, classifyGormError(q.Table, "delete from", res.Error)
	}
	return res.RowsAffected, nil
}

func classifyGormError(table, action string, err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry) {
		zap.S().Debugw("duplicate key", "table", table, "error", err)
		return rowstore.NewUniqueViolationError(err)
	}
	return fmt.Errorf("failed to %s %s: %w", action, table, err)
}
