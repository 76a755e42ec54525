package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lychee-technology/rowstore"
	"go.uber.org/zap"
)

// CircuitBreaker opens after threshold failures inside window and stays open
// for openDuration.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

// NewCircuitBreaker creates a configured circuit breaker.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failure and opens the breaker once the threshold
// is reached. It reports whether this call opened it.
func (cb *CircuitBreaker) RecordFailure() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append(cb.failures[:0], cb.failures[i:]...)
	}
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold && !now.Before(cb.openUntil) {
		cb.openUntil = now.Add(cb.openDuration)
		cb.failures = cb.failures[:0]
		return true
	}
	return false
}

// RecordSuccess resets failure history.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// OpenUntil returns the end of the open period, or the zero time when the
// breaker is closed.
func (cb *CircuitBreaker) OpenUntil() time.Time {
	if cb == nil {
		return time.Time{}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.now().Before(cb.openUntil) {
		return cb.openUntil
	}
	return time.Time{}
}

// IsOpen returns true if the breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	return !cb.OpenUntil().IsZero()
}

// BreakerEngine rejects statements while its breaker is open. Constraint
// violations and cancelled contexts are not failures of the database and do
// not count against it.
type BreakerEngine struct {
	next rowstore.QueryEngine
	cb   *CircuitBreaker
}

// NewBreakerEngine wraps next.
func NewBreakerEngine(next rowstore.QueryEngine, cb *CircuitBreaker) *BreakerEngine {
	return &BreakerEngine{next: next, cb: cb}
}

// Unwrap returns the wrapped engine.
func (e *BreakerEngine) Unwrap() rowstore.QueryEngine { return e.next }

func (e *BreakerEngine) allow(table string) error {
	if until := e.cb.OpenUntil(); !until.IsZero() {
		return rowstore.NewCircuitOpenError(table, until)
	}
	return nil
}

func (e *BreakerEngine) record(table string, err error) {
	switch {
	case err == nil:
		e.cb.RecordSuccess()
	case errors.Is(err, rowstore.ErrUniqueViolation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
	default:
		if e.cb.RecordFailure() {
			zap.S().Warnw("circuit breaker opened", "table", table, "until", e.cb.OpenUntil(), "error", err)
		}
	}
}

func (e *BreakerEngine) Select(ctx context.Context, q *rowstore.Query) ([]rowstore.Record, error) {
	if err := e.allow(q.Table); err != nil {
		return nil, err
	}
	rows, err := e.next.Select(ctx, q)
	e.record(q.Table, err)
	return rows, err
}

func (e *BreakerEngine) Count(ctx context.Context, q *rowstore.Query) (int64, error) {
	if err := e.allow(q.Table); err != nil {
		return 0, err
	}
	n, err := e.next.Count(ctx, q)
	e.record(q.Table, err)
	return n, err
}

func (e *BreakerEngine) Insert(ctx context.Context, table string, row rowstore.Record, returning string) (any, error) {
	if err := e.allow(table); err != nil {
		return nil, err
	}
	id, err := e.next.Insert(ctx, table, row, returning)
	e.record(table, err)
	return id, err
}

func (e *BreakerEngine) InsertBatch(ctx context.Context, table string, rows []rowstore.Record, batchSize int) (int64, error) {
	if err := e.allow(table); err != nil {
		return 0, err
	}
	n, err := e.next.InsertBatch(ctx, table, rows, batchSize)
	e.record(table, err)
	return n, err
}

func (e *BreakerEngine) Update(ctx context.Context, q *rowstore.Query, set rowstore.Record) (int64, error) {
	if err := e.allow(q.Table); err != nil {
		return 0, err
	}
	n, err := e.next.Update(ctx, q, set)
	e.record(q.Table, err)
	return n, err
}

func (e *BreakerEngine) Delete(ctx context.Context, q *rowstore.Query) (int64, error) {
	if err := e.allow(q.Table); err != nil {
		return 0, err
	}
	n, err := e.next.Delete(ctx, q)
	e.record(q.Table, err)
	return n, err
}
