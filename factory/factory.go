package factory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"go.uber.org/zap"
)

// Option customizes a model built by this package.
type Option = internal.Option

// Metrics collects per table operation counters.
type Metrics = internal.Metrics

var (
	WithValidator = internal.WithValidator
	WithHooks     = internal.WithHooks
	WithMetrics   = internal.WithMetrics
	WithLogger    = internal.WithLogger
)

// NewMetrics creates an isolated metrics set whose names start with namespace.
func NewMetrics(namespace string) *Metrics {
	return internal.NewMetrics(namespace)
}

// NewModel binds a model configuration to any QueryEngine.
//
// Usage:
//
//	cfg := rowstore.DefaultModelConfig("users")
//	cfg.AltKeys = []rowstore.Key{{"email"}}
//	users, err := factory.NewModel(cfg, engine)
//	if err != nil {
//	    // handle error
//	}
//	res, err := users.FindAltBy(ctx, map[string]any{"email": "a@example.com"})
func NewModel(cfg rowstore.ModelConfig, engine rowstore.QueryEngine, opts ...Option) (rowstore.Model, error) {
	return internal.NewModel(cfg, engine, opts...)
}

// NewPostgresModel binds cfg to a pgx pool after checking that the model's
// table exists.
func NewPostgresModel(ctx context.Context, cfg rowstore.ModelConfig, pool *pgxpool.Pool, opts ...Option) (rowstore.Model, error) {
	if err := verifyTables(ctx, pool, cfg.Table); err != nil {
		return nil, err
	}
	return internal.NewModel(cfg, internal.NewPostgresEngine(pool, false), opts...)
}

// NewMemoryModel binds cfg to a fresh in-process engine.
func NewMemoryModel(cfg rowstore.ModelConfig, opts ...Option) (rowstore.Model, *internal.MemoryEngine, error) {
	engine := internal.NewMemoryEngine()
	if cfg.AutoIncrement {
		engine.AutoIncrement(cfg.Table, cfg.IncrementColumn())
	}
	m, err := internal.NewModel(cfg, engine, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, engine, nil
}

type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var tableCollector = collectTablesFromPool

func collectTablesFromPool(ctx context.Context, pool queryPool) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan table name: %w", err)
	}
	return tables, nil
}

// verifyTables fails when any of want is missing from the current schema.
// Schema qualified names are checked by their last segment.
func verifyTables(ctx context.Context, pool queryPool, want ...string) error {
	tables, err := tableCollector(ctx, pool)
	if err != nil {
		return err
	}
	var missing []string
	for _, t := range want {
		if i := strings.LastIndexByte(t, '.'); i >= 0 {
			t = t[i+1:]
		}
		if !slices.Contains(tables, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tables are missing in the database: %s", strings.Join(missing, ", "))
	}
	zap.S().Debugw("verified tables", "tables", want)
	return nil
}
