package rowstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_RegistrationOrder(t *testing.T) {
	var calls []string
	h := NewHooks().
		On(BeforeInsert, func(ctx context.Context, e *Event) error {
			calls = append(calls, "first")
			return nil
		}).
		On(BeforeInsert, func(ctx context.Context, e *Event) error {
			calls = append(calls, "second")
			return nil
		}).
		On(BeforeInsert, nil)

	require.Equal(t, 2, h.Len(BeforeInsert))
	for _, fn := range h.Handlers(BeforeInsert) {
		require.NoError(t, fn(context.Background(), &Event{Name: BeforeInsert}))
	}
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Zero(t, h.Len(AfterInsert))
}

func TestHooks_HandlersIsSnapshot(t *testing.T) {
	h := NewHooks()
	noop := func(ctx context.Context, e *Event) error { return nil }
	h.On(AfterFind, noop)

	snapshot := h.Handlers(AfterFind)
	h.On(AfterFind, noop)

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, h.Len(AfterFind))
}

func TestHooks_NilAndZeroValue(t *testing.T) {
	var nilHooks *Hooks
	assert.Nil(t, nilHooks.Handlers(BeforeFind))
	assert.Zero(t, nilHooks.Len(BeforeFind))

	var zero Hooks
	zero.On(BeforeDelete, func(ctx context.Context, e *Event) error { return nil })
	assert.Equal(t, 1, zero.Len(BeforeDelete))
}

func TestHooks_ConcurrentRegistration(t *testing.T) {
	h := NewHooks()
	noop := func(ctx context.Context, e *Event) error { return nil }

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.On(AfterUpdate, noop)
			_ = h.Handlers(AfterUpdate)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, h.Len(AfterUpdate))
}
