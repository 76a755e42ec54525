package internal

import (
	"context"

	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
)

// hookDispatcher runs lifecycle callbacks for one call.
type hookDispatcher struct {
	hooks   *rowstore.Hooks
	enabled bool
}

// fire runs every handler registered for e.Name in order. Each handler sees
// the changes made by the previous ones.
func (d hookDispatcher) fire(ctx context.Context, e *rowstore.Event) error {
	if !d.enabled || d.hooks == nil {
		return nil
	}
	for _, fn := range d.hooks.Handlers(e.Name) {
		if err := fn(ctx, e); err != nil {
			zap.S().Debugw("hook failed", "event", e.Name, "method", e.Method, "op_id", e.OpID, "error", err)
			return rowstore.NewHookError(e.Name, err)
		}
	}
	return nil
}
