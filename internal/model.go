package internal

import (
	"context"
	"errors"
	"time"

	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
)

// model is the immutable, shareable half of a table binding. All call state
// lives on scope.
type model struct {
	cfg       rowstore.ModelConfig
	engine    rowstore.QueryEngine
	validator rowstore.Validator
	hooks     *rowstore.Hooks
	metrics   *Metrics
	log       *zap.SugaredLogger
	policy    softDeletePolicy
	nowFunc   func() time.Time
}

// Option customizes a model at construction.
type Option func(*model)

// WithValidator checks rows before they are written.
func WithValidator(v rowstore.Validator) Option {
	return func(m *model) { m.validator = v }
}

// WithHooks attaches a lifecycle hook registry.
func WithHooks(h *rowstore.Hooks) Option {
	return func(m *model) {
		if h != nil {
			m.hooks = h
		}
	}
}

// WithMetrics records operation counters and latencies.
func WithMetrics(mt *Metrics) Option {
	return func(m *model) { m.metrics = mt }
}

// WithLogger replaces the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *model) {
		if l != nil {
			m.log = l.Sugar()
		}
	}
}

// NewModel binds cfg to engine.
func NewModel(cfg rowstore.ModelConfig, engine rowstore.QueryEngine, opts ...Option) (rowstore.Model, error) {
	m, err := newModel(cfg, engine, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newModel(cfg rowstore.ModelConfig, engine rowstore.QueryEngine, opts ...Option) (*model, error) {
	if engine == nil {
		return nil, errors.New("query engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.PrimaryKey = append(rowstore.Key(nil), cfg.PrimaryKey...)
	cfg.AltKeys = append([]rowstore.Key(nil), cfg.AltKeys...)
	cfg.DateFormat = dateFormatOrDefault(cfg.DateFormat)

	m := &model{
		cfg:     cfg,
		engine:  engine,
		hooks:   rowstore.NewHooks(),
		log:     zap.S(),
		policy:  newSoftDeletePolicy(cfg.SoftDelete, cfg.Table),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *model) withClock(now func() time.Time) {
	if now == nil {
		m.nowFunc = time.Now
		return
	}
	m.nowFunc = now
}

func (m *model) now() time.Time {
	if m.nowFunc == nil {
		return time.Now()
	}
	return m.nowFunc()
}

func (m *model) Config() rowstore.ModelConfig {
	cfg := m.cfg
	cfg.PrimaryKey = append(rowstore.Key(nil), m.cfg.PrimaryKey...)
	cfg.AltKeys = append([]rowstore.Key(nil), m.cfg.AltKeys...)
	return cfg
}

func (m *model) Hooks() *rowstore.Hooks { return m.hooks }

func (m *model) NewScope() rowstore.Scope { return m.newScope() }

func (m *model) Where(column string, value any) rowstore.Scope {
	return m.newScope().Where(column, value)
}

func (m *model) WhereIn(column string, values ...any) rowstore.Scope {
	return m.newScope().WhereIn(column, values...)
}

func (m *model) OnlyDeleted() rowstore.Scope { return m.newScope().OnlyDeleted() }

func (m *model) WithDeleted() rowstore.Scope { return m.newScope().WithDeleted() }

func (m *model) Find(ctx context.Context, id rowstore.Identifier) (*rowstore.Result, error) {
	return m.newScope().Find(ctx, id)
}

func (m *model) FindAll(ctx context.Context, limit, offset int) (*rowstore.Result, error) {
	return m.newScope().FindAll(ctx, limit, offset)
}

func (m *model) FindAlt(ctx context.Context, columns []string, id rowstore.Identifier) (*rowstore.Result, error) {
	return m.newScope().FindAlt(ctx, columns, id)
}

func (m *model) FindAltBy(ctx context.Context, values map[string]any) (*rowstore.Result, error) {
	return m.newScope().FindAltBy(ctx, values)
}

func (m *model) First(ctx context.Context) (rowstore.Record, error) {
	return m.newScope().First(ctx)
}

func (m *model) CountAllResults(ctx context.Context) (int64, error) {
	return m.newScope().CountAllResults(ctx, true)
}

func (m *model) Save(ctx context.Context, value any) (*rowstore.WriteResult, error) {
	return m.newScope().save(ctx, value)
}

func (m *model) Insert(ctx context.Context, value any) (*rowstore.WriteResult, error) {
	return m.newScope().insert(ctx, value)
}

func (m *model) InsertBatch(ctx context.Context, values []any, batchSize int) (*rowstore.WriteResult, error) {
	return m.newScope().insertBatch(ctx, values, batchSize)
}

func (m *model) Update(ctx context.Context, id rowstore.Identifier, value any) (*rowstore.WriteResult, error) {
	return m.newScope().Update(ctx, id, value)
}

func (m *model) Delete(ctx context.Context, id rowstore.Identifier, purge bool) (*rowstore.WriteResult, error) {
	return m.newScope().Delete(ctx, id, purge)
}

func (m *model) PurgeDeleted(ctx context.Context) (*rowstore.WriteResult, error) {
	return m.newScope().purgeDeleted(ctx)
}

func (m *model) resolver(key rowstore.Key) keyResolver {
	return newKeyResolver(key, m.cfg.Table, m.cfg.Name())
}

// engineError passes rowstore errors through and wraps everything else.
func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rsErr *rowstore.Error
	if errors.As(err, &rsErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return rowstore.NewQueryError(op, err)
}
