package factory

import (
	"fmt"
	"slices"

	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds named models bound to one engine. It is safe for
// concurrent use.
type Registry struct {
	engine rowstore.QueryEngine
	opts   []Option
	models *xsync.MapOf[string, rowstore.Model]
}

// NewRegistry creates a registry whose models share engine and opts.
func NewRegistry(engine rowstore.QueryEngine, opts ...Option) *Registry {
	return &Registry{
		engine: engine,
		opts:   opts,
		models: xsync.NewMapOf[string, rowstore.Model](),
	}
}

// Register builds a model for cfg under name. Extra options apply after the
// registry's own.
func (r *Registry) Register(name string, cfg rowstore.ModelConfig, opts ...Option) (rowstore.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if _, ok := r.models.Load(name); ok {
		return nil, fmt.Errorf("model %q already registered", name)
	}
	if mem, ok := r.engine.(*internal.MemoryEngine); ok && cfg.AutoIncrement {
		mem.AutoIncrement(cfg.Table, cfg.IncrementColumn())
	}
	m, err := internal.NewModel(cfg, r.engine, append(slices.Clone(r.opts), opts...)...)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	if actual, loaded := r.models.LoadOrStore(name, m); loaded {
		return actual, fmt.Errorf("model %q already registered", name)
	}
	return m, nil
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (rowstore.Model, bool) {
	return r.models.Load(name)
}

// Names lists registered models in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.models.Size())
	r.models.Range(func(name string, _ rowstore.Model) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Len reports the number of registered models.
func (r *Registry) Len() int { return r.models.Size() }
