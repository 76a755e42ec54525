package rowstore

import (
	"context"
)

// QueryEngine executes statements against one store. Implementations live in
// internal/ (pgx, database/sql, gorm and an in-memory engine).
type QueryEngine interface {
	Select(ctx context.Context, q *Query) ([]Record, error)
	Count(ctx context.Context, q *Query) (int64, error)
	// Insert writes one row. When returning is not empty the value generated
	// for that column is returned.
	Insert(ctx context.Context, table string, row Record, returning string) (any, error)
	InsertBatch(ctx context.Context, table string, rows []Record, batchSize int) (int64, error)
	Update(ctx context.Context, q *Query, set Record) (int64, error)
	Delete(ctx context.Context, q *Query) (int64, error)
}

// Validator checks a row before it is written. In partial mode only the
// fields present in the row are checked.
type Validator interface {
	Validate(ctx context.Context, row Record, partial bool) Violations
}

// Model reads and writes rows of one table. A Model is immutable and safe
// for concurrent use; every call runs on a fresh Scope.
type Model interface {
	Config() ModelConfig
	Hooks() *Hooks

	// NewScope returns an empty single-owner scope.
	NewScope() Scope
	Where(column string, value any) Scope
	WhereIn(column string, values ...any) Scope
	OnlyDeleted() Scope
	WithDeleted() Scope

	Find(ctx context.Context, id Identifier) (*Result, error)
	FindAll(ctx context.Context, limit, offset int) (*Result, error)
	// FindAlt looks rows up by the primary key or a registered alternate
	// key. The columns must match one of them as a set.
	FindAlt(ctx context.Context, columns []string, id Identifier) (*Result, error)
	FindAltBy(ctx context.Context, values map[string]any) (*Result, error)
	First(ctx context.Context) (Record, error)
	CountAllResults(ctx context.Context) (int64, error)

	// Save updates the row named by the primary key in value or inserts it.
	// Saving the key of a soft deleted row clears its deleted marker. A
	// unique violation on any other column is returned as ErrUniqueViolation.
	Save(ctx context.Context, value any) (*WriteResult, error)
	Insert(ctx context.Context, value any) (*WriteResult, error)
	InsertBatch(ctx context.Context, values []any, batchSize int) (*WriteResult, error)
	Update(ctx context.Context, id Identifier, value any) (*WriteResult, error)
	Delete(ctx context.Context, id Identifier, purge bool) (*WriteResult, error)
	PurgeDeleted(ctx context.Context) (*WriteResult, error)
}

// Scope accumulates call scoped conditions and modes. It is owned by a single
// goroutine. Find, FindAll, FindAlt, First, Delete and CountAllResults with
// reset reset it once they complete.
type Scope interface {
	Where(column string, value any) Scope
	WhereIn(column string, values ...any) Scope
	WhereNull(column string) Scope
	OrderBy(column string, order SortOrder) Scope
	GroupBy(columns ...string) Scope
	OnlyDeleted() Scope
	WithDeleted() Scope
	WithoutCallbacks() Scope

	Find(ctx context.Context, id Identifier) (*Result, error)
	FindAll(ctx context.Context, limit, offset int) (*Result, error)
	FindAlt(ctx context.Context, columns []string, id Identifier) (*Result, error)
	FindAltBy(ctx context.Context, values map[string]any) (*Result, error)
	First(ctx context.Context) (Record, error)
	CountAllResults(ctx context.Context, reset bool) (int64, error)

	Update(ctx context.Context, id Identifier, value any) (*WriteResult, error)
	Delete(ctx context.Context, id Identifier, purge bool) (*WriteResult, error)
}
