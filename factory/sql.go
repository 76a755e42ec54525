package factory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQL opens a database/sql handle for the postgres (lib/pq), sqlite3 and
// duckdb drivers and returns the matching dialect.
func OpenSQL(ctx context.Context, cfg rowstore.DatabaseConfig) (*sql.DB, internal.Dialect, error) {
	var dialect internal.Dialect
	dsn := cfg.DSN
	switch cfg.Driver {
	case "postgres":
		dialect = internal.DialectPostgres
		dsn = postgresURL(cfg)
	case "sqlite3":
		dialect = internal.DialectSQLite
		if dsn == "" {
			dsn = cfg.Database
		}
	case "duckdb":
		dialect = internal.DialectDuckDB
		if dsn == "" {
			dsn = cfg.Database
		}
	default:
		return nil, "", fmt.Errorf("unsupported database/sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	applyPoolSettings(db, cfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}
	return db, dialect, nil
}

func applyPoolSettings(db *sql.DB, cfg rowstore.DatabaseConfig) {
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// NewSQLModel binds cfg to an open database/sql handle.
func NewSQLModel(cfg rowstore.ModelConfig, db *sql.DB, dialect internal.Dialect, opts ...Option) (rowstore.Model, error) {
	engine, err := internal.NewSQLEngine(db, dialect, false)
	if err != nil {
		return nil, err
	}
	return internal.NewModel(cfg, engine, opts...)
}
