package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/lib/pq"
	"github.com/lychee-technology/rowstore"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect names the SQL flavour spoken by a database/sql connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
	DialectDuckDB   Dialect = "duckdb"
)

func (d Dialect) placeholders() placeholderStyle {
	if d == DialectSQLite {
		return questionPlaceholders
	}
	return dollarPlaceholders
}

// SQLEngine executes rowstore queries through database/sql.
type SQLEngine struct {
	db         *sql.DB
	dialect    Dialect
	logQueries bool
}

// NewSQLEngine wraps db. The dialect selects placeholders and error mapping.
func NewSQLEngine(db *sql.DB, dialect Dialect, logQueries bool) (*SQLEngine, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite, DialectDuckDB:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLEngine{db: db, dialect: dialect, logQueries: logQueries}, nil
}

// DB returns the underlying handle.
func (e *SQLEngine) DB() *sql.DB { return e.db }

func (e *SQLEngine) trace(query string, args []any) {
	if e.logQueries {
		zap.S().Debugw("sql query", "dialect", e.dialect, "sql", query, "args", args)
	}
}

func (e *SQLEngine) Select(ctx context.Context, q *rowstore.Query) ([]rowstore.Record, error) {
	query, args, err := buildSelect(q, e.dialect.placeholders())
	if err != nil {
		return nil, err
	}
	e.trace(query, args)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// scanRecords reads every row into a Record keyed by column name.
func scanRecords(rows *sql.Rows) ([]rowstore.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var out []rowstore.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(rowstore.Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (e *SQLEngine) Count(ctx context.Context, q *rowstore.Query) (int64, error) {
	query, args, err := buildCount(q, e.dialect.placeholders())
	if err != nil {
		return 0, err
	}
	e.trace(query, args)
	var n int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Table, err)
	}
	return n, nil
}

func (e *SQLEngine) Insert(ctx context.Context, table string, row rowstore.Record, returning string) (any, error) {
	query, args := buildInsert(table, row, returning, e.dialect.placeholders())
	e.trace(query, args)
	if returning == "" {
		if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
			return nil, e.classify(table, "insert into", err)
		}
		return nil, nil
	}
	var id any
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, e.classify(table, "insert into", err)
	}
	if b, ok := id.([]byte); ok {
		return string(b), nil
	}
	return id, nil
}

func (e *SQLEngine) InsertBatch(ctx context.Context, table string, rows []rowstore.Record, batchSize int) (int64, error) {
	var n int64
	for i, chunk := range chunkRows(rows, batchSize) {
		query, args := buildInsertBatch(table, chunk, e.dialect.placeholders())
		e.trace(query, args)
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return n, e.classify(table, fmt.Sprintf("insert batch %d into", i), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = int64(len(chunk))
		}
		n += affected
	}
	return n, nil
}

func (e *SQLEngine) Update(ctx context.Context, q *rowstore.Query, set rowstore.Record) (int64, error) {
	query, args, err := buildUpdate(q, set, e.dialect.placeholders())
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, q.Table, "update", query, args)
}

func (e *SQLEngine) Delete(ctx context.Context, q *rowstore.Query) (int64, error) {
	query, args, err := buildDelete(q, e.dialect.placeholders())
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, q.Table, "delete from", query, args)
}

func (e *SQLEngine) exec(ctx context.Context, table, action, query string, args []any) (int64, error) {
	e.trace(query, args)
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, e.classify(table, action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows of %s: %w", table, err)
	}
	return n, nil
}

func (e *SQLEngine) classify(table, action string, err error) error {
	if isUniqueViolation(err) {
		return rowstore.NewUniqueViolationError(err)
	}
	return fmt.Errorf("failed to %s %s: %w", action, table, err)
}

// isUniqueViolation recognizes duplicate key errors of every supported
// database/sql driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		return duckErr.Type == duckdb.ErrorTypeConstraint && strings.Contains(duckErr.Msg, "Duplicate key")
	}
	return false
}
