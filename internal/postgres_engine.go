package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

// pgxPool is the subset of *pgxpool.Pool the engine needs. pgxmock pools
// satisfy it too.
type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresEngine executes rowstore queries through pgx.
type PostgresEngine struct {
	pool       pgxPool
	logQueries bool
}

// NewPostgresEngine wraps a pgx pool.
func NewPostgresEngine(pool pgxPool, logQueries bool) *PostgresEngine {
	return &PostgresEngine{pool: pool, logQueries: logQueries}
}

func (e *PostgresEngine) trace(sql string, args []any) {
	if e.logQueries {
		zap.S().Debugw("pgx query", "sql", sql, "args", args)
	}
}

func (e *PostgresEngine) Select(ctx context.Context, q *rowstore.Query) ([]rowstore.Record, error) {
	sql, args, err := buildSelect(q, dollarPlaceholders)
	if err != nil {
		return nil, err
	}
	e.trace(sql, args)
	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", q.Table, err)
	}
	out := make([]rowstore.Record, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out, nil
}

func (e *PostgresEngine) Count(ctx context.Context, q *rowstore.Query) (int64, error) {
	sql, args, err := buildCount(q, dollarPlaceholders)
	if err != nil {
		return 0, err
	}
	e.trace(sql, args)
	var n int64
	if err := e.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Table, err)
	}
	return n, nil
}

func (e *PostgresEngine) Insert(ctx context.Context, table string, row rowstore.Record, returning string) (any, error) {
	sql, args := buildInsert(table, row, returning, dollarPlaceholders)
	e.trace(sql, args)
	if returning == "" {
		if _, err := e.pool.Exec(ctx, sql, args...); err != nil {
			return nil, classifyPgError(table, "insert into", err)
		}
		return nil, nil
	}
	var id any
	if err := e.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return nil, classifyPgError(table, "insert into", err)
	}
	return id, nil
}

// InsertBatch queues one multi row INSERT per chunk and sends them as a
// single pgx batch.
func (e *PostgresEngine) InsertBatch(ctx context.Context, table string, rows []rowstore.Record, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	chunks := chunkRows(rows, batchSize)
	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		sql, args := buildInsertBatch(table, chunk, dollarPlaceholders)
		e.trace(sql, args)
		batch.Queue(sql, args...)
	}

	results := e.pool.SendBatch(ctx, batch)
	defer results.Close()

	var n int64
	for i := range chunks {
		tag, err := results.Exec()
		if err != nil {
			return n, classifyPgError(table, fmt.Sprintf("insert batch %d into", i), err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

func (e *PostgresEngine) Update(ctx context.Context, q *rowstore.Query, set rowstore.Record) (int64, error) {
	sql, args, err := buildUpdate(q, set, dollarPlaceholders)
	if err != nil {
		return 0, err
	}
	e.trace(sql, args)
	tag, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classifyPgError(q.Table, "update", err)
	}
	return tag.RowsAffected(), nil
}

func (e *PostgresEngine) Delete(ctx context.Context, q *rowstore.Query) (int64, error) {
	sql, args, err := buildDelete(q, dollarPlaceholders)
	if err != nil {
		return 0, err
	}
	e.trace(sql, args)
	tag, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classifyPgError(q.Table, "delete from", err)
	}
	return tag.RowsAffected(), nil
}

func classifyPgError(table, action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return rowstore.NewUniqueViolationError(err).WithDetail("constraint", pgErr.ConstraintName)
	}
	return fmt.Errorf("failed to %s %s: %w", action, table, err)
}
