package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestMetrics counts pipeline activity and exposes it in Prometheus text
// format. Intentionally small: counters and a latency sum per operation,
// no external metrics dependency.
type RequestMetrics struct {
	mu    sync.Mutex
	calls map[string]int64
	errs  map[string]int64
	nanos map[string]int64
}

// NewRequestMetrics creates an empty registry.
func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		calls: make(map[string]int64),
		errs:  make(map[string]int64),
		nanos: make(map[string]int64),
	}
}

// Record tracks one completed operation ("ingest", "ask", "search", ...).
func (m *RequestMetrics) Record(op string, took time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	m.nanos[op] += took.Nanoseconds()
	if err != nil {
		m.errs[op]++
	}
}

// Snapshot returns (calls, errors, average latency) for one operation.
func (m *RequestMetrics) Snapshot(op string) (int64, int64, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := m.calls[op]
	if calls == 0 {
		return 0, m.errs[op], 0
	}
	return calls, m.errs[op], time.Duration(m.nanos[op] / calls)
}

// Handler serves the metrics in Prometheus text exposition format.
func (m *RequestMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.mu.Lock()
		defer m.mu.Unlock()

		ops := make([]string, 0, len(m.calls))
		for op := range m.calls {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		var b strings.Builder
		b.WriteString("# TYPE ragline_requests_total counter\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "ragline_requests_total{op=%q} %d\n", op, m.calls[op])
		}
		b.WriteString("# TYPE ragline_request_errors_total counter\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "ragline_request_errors_total{op=%q} %d\n", op, m.errs[op])
		}
		b.WriteString("# TYPE ragline_request_seconds_total counter\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "ragline_request_seconds_total{op=%q} %g\n", op, float64(m.nanos[op])/1e9)
		}
		fmt.Fprint(w, b.String())
	})
}
