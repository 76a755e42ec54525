package factory

import (
	"context"
	"fmt"

	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"go.uber.org/zap"
)

// Engine is an open QueryEngine together with the function releasing its
// connections.
type Engine struct {
	rowstore.QueryEngine
	Driver string
	close  func()
}

// Close releases the engine's connections.
func (e *Engine) Close() {
	if e != nil && e.close != nil {
		e.close()
	}
}

// OpenEngine connects to the database described by cfg and returns the
// QueryEngine for its driver:
//
//	pgx, dsql               pgx pool
//	postgres, sqlite3, duckdb  database/sql
//	mysql                   gorm
//	memory                  in-process tables
//
// A positive cfg.Breaker.Threshold puts a circuit breaker in front of every
// driver except memory.
func OpenEngine(ctx context.Context, cfg rowstore.DatabaseConfig, logQueries bool) (*Engine, error) {
	zap.S().Debugw("opening engine", "driver", cfg.Driver, "host", cfg.Host, "database", cfg.Database)
	engine, err := openEngine(ctx, cfg, logQueries)
	if err != nil {
		return nil, err
	}
	if b := cfg.Breaker; b.Threshold > 0 && engine.Driver != "memory" {
		engine.QueryEngine = internal.NewBreakerEngine(engine.QueryEngine, internal.NewCircuitBreaker(b.Threshold, b.Window, b.Cooldown))
	}
	return engine, nil
}

func openEngine(ctx context.Context, cfg rowstore.DatabaseConfig, logQueries bool) (*Engine, error) {
	switch cfg.Driver {
	case "pgx", "dsql":
		open := NewPostgresPool
		if cfg.Driver == "dsql" {
			open = NewDSQLPool
		}
		pool, err := open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Engine{QueryEngine: internal.NewPostgresEngine(pool, logQueries), Driver: cfg.Driver, close: pool.Close}, nil
	case "postgres", "sqlite3", "duckdb":
		db, dialect, err := OpenSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		engine, err := internal.NewSQLEngine(db, dialect, logQueries)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Engine{QueryEngine: engine, Driver: cfg.Driver, close: func() { db.Close() }}, nil
	case "mysql":
		db, err := OpenMySQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Engine{QueryEngine: internal.NewGormEngine(db, logQueries), Driver: cfg.Driver, close: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}}, nil
	case "memory":
		return &Engine{QueryEngine: internal.NewMemoryEngine(), Driver: cfg.Driver}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
