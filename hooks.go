package rowstore

import (
	"context"
	"slices"
	"sync"
)

// EventName identifies a lifecycle hook point.
type EventName string

const (
	BeforeFind   EventName = "beforeFind"
	AfterFind    EventName = "afterFind"
	BeforeInsert EventName = "beforeInsert"
	AfterInsert  EventName = "afterInsert"
	BeforeUpdate EventName = "beforeUpdate"
	AfterUpdate  EventName = "afterUpdate"
	BeforeDelete EventName = "beforeDelete"
	AfterDelete  EventName = "afterDelete"
)

// Event is the payload handed to every hook of one operation. Hooks may
// mutate it; the model reads Data back after before hooks and Result back
// after find hooks.
type Event struct {
	Name EventName
	// Method is the public operation that fired the event, for example
	// "find", "findAll", "first", "insert", "update" or "delete".
	Method string
	// OpID correlates the before and after events of one call.
	OpID string
	// ID is the caller's identifier in its dynamic form.
	ID        any
	Data      Record
	Result    *Result
	Singleton bool
	Limit     int
	Offset    int
	Purge     bool
	InsertID  any
	Outcome   *WriteResult

	// ReturnData set by a before hook skips the store. Find operations
	// return Result and writes return Outcome.
	ReturnData bool
}

// HookFunc is a lifecycle callback. Returning an error aborts the operation.
type HookFunc func(ctx context.Context, e *Event) error

// Hooks holds callbacks per event in registration order. It is safe for
// concurrent use.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[EventName][]HookFunc
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{handlers: make(map[EventName][]HookFunc)}
}

// On registers fn for event.
func (h *Hooks) On(event EventName, fn HookFunc) *Hooks {
	if fn == nil {
		return h
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[EventName][]HookFunc)
	}
	h.handlers[event] = append(h.handlers[event], fn)
	return h
}

// Handlers returns a snapshot of the callbacks registered for event.
func (h *Hooks) Handlers(event EventName) []HookFunc {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.handlers[event])
}

// Len returns the number of callbacks registered for event.
func (h *Hooks) Len(event EventName) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[event])
}
