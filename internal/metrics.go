package internal

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics records per operation counters and latencies.
type Metrics struct {
	set       *metrics.Set
	namespace string
}

// NewMetrics returns a metrics set whose series are prefixed by namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rowstore"
	}
	return &Metrics{set: metrics.NewSet(), namespace: namespace}
}

// observe records one finished operation. A nil receiver records nothing.
func (m *Metrics) observe(table, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`%s_operations_total{table=%q,op=%q,status=%q}`, m.namespace, table, op, status)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`%s_operation_duration_seconds{table=%q,op=%q}`, m.namespace, table, op)).UpdateDuration(start)
}

// flip counts save decisions that were retried after losing a race.
func (m *Metrics) flip(table, from string) {
	if m == nil {
		return
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`%s_save_flips_total{table=%q,from=%q}`, m.namespace, table, from)).Inc()
}

// shortCircuit counts operations answered by a before hook.
func (m *Metrics) shortCircuit(table, op string) {
	if m == nil {
		return
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`%s_hook_short_circuits_total{table=%q,op=%q}`, m.namespace, table, op)).Inc()
}

// WritePrometheus writes all series in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	if m == nil {
		return
	}
	m.set.WritePrometheus(w)
}
