// Package prometheus implements pkg/metrics on the Prometheus client.
// Import it for its side effect of registering the constructors.
package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type cacheKey struct {
	reg  *prometheus.Registry
	kind string
}

var (
	cacheMu sync.Mutex
	cache   = make(map[cacheKey]any)
)

func init() {
	metrics.RegisterConstructors(metrics.Constructors{
		Recovery: func() metrics.RecoveryMetrics { return NewRecoveryMetrics() },
		HTTP:     func() metrics.HTTPMetrics { return NewHTTPMetrics() },
		RPC:      func() metrics.RPCMetrics { return NewRPCMetrics() },
		Executor: func() metrics.ExecutorMetrics { return NewExecutorMetrics() },
	})
}

// cached returns the metrics of kind built for the active registry,
// building them on first use. Collectors register once per registry.
func cached[T any](kind string, build func(promauto.Factory) T) T {
	reg := metrics.GetRegistry()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	k := cacheKey{reg: reg, kind: kind}
	if v, ok := cache[k]; ok {
		return v.(T)
	}
	var r prometheus.Registerer
	if reg != nil {
		r = reg
	}
	v := build(promauto.With(r))
	cache[k] = v
	return v
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type recoveryMetrics struct {
	databases *prometheus.CounterVec
	rows      prometheus.Counter
	dbSeconds prometheus.Histogram
	runDBs    prometheus.Gauge
	runSecs   prometheus.Gauge
}

func NewRecoveryMetrics() *recoveryMetrics {
	return cached("recovery", func(f promauto.Factory) *recoveryMetrics {
		return &recoveryMetrics{
			databases: f.NewCounterVec(prometheus.CounterOpts{
				Name: "bufferdb_recovery_databases_total",
				Help: "Database recoveries by outcome",
			}, []string{"outcome"}),
			rows: f.NewCounter(prometheus.CounterOpts{
				Name: "bufferdb_recovery_rows_total",
				Help: "Rows restored from WAL replay",
			}),
			dbSeconds: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "bufferdb_recovery_database_duration_seconds",
				Help:    "Time to recover one database",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			}),
			runDBs: f.NewGauge(prometheus.GaugeOpts{
				Name: "bufferdb_recovered_databases",
				Help: "Databases recovered at startup",
			}),
			runSecs: f.NewGauge(prometheus.GaugeOpts{
				Name: "bufferdb_recovery_duration_seconds",
				Help: "Duration of the startup recovery pass",
			}),
		}
	})
}

func (m *recoveryMetrics) ObserveDatabase(_ string, rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.databases.WithLabelValues(outcome(err)).Inc()
	m.rows.Add(float64(rows))
	m.dbSeconds.Observe(d.Seconds())
}

func (m *recoveryMetrics) ObserveRun(databases int, d time.Duration) {
	if m == nil {
		return
	}
	m.runDBs.Set(float64(databases))
	m.runSecs.Set(d.Seconds())
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	points   *prometheus.CounterVec
}

func NewHTTPMetrics() *httpMetrics {
	return cached("http", func(f promauto.Factory) *httpMetrics {
		return &httpMetrics{
			requests: f.NewCounterVec(prometheus.CounterOpts{
				Name: "bufferdb_http_requests_total",
				Help: "HTTP requests by method, route and status",
			}, []string{"method", "route", "status"}),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "bufferdb_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "route"}),
			points: f.NewCounterVec(prometheus.CounterOpts{
				Name: "bufferdb_points_written_total",
				Help: "Line protocol points accepted by database",
			}, []string{"database"}),
		}
	})
}

func (m *httpMetrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *httpMetrics) RecordPointsWritten(database string, points int) {
	if m == nil {
		return
	}
	m.points.WithLabelValues(database).Add(float64(points))
}

type rpcMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRPCMetrics() *rpcMetrics {
	return cached("rpc", func(f promauto.Factory) *rpcMetrics {
		return &rpcMetrics{
			calls: f.NewCounterVec(prometheus.CounterOpts{
				Name: "bufferdb_grpc_calls_total",
				Help: "gRPC calls by method and status code",
			}, []string{"method", "code"}),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "bufferdb_grpc_call_duration_seconds",
				Help:    "gRPC call latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
		}
	})
}

func (m *rpcMetrics) RecordCall(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

type executorMetrics struct {
	tasks    *prometheus.CounterVec
	duration prometheus.Histogram
	rejected prometheus.Counter
}

func NewExecutorMetrics() *executorMetrics {
	return cached("executor", func(f promauto.Factory) *executorMetrics {
		return &executorMetrics{
			tasks: f.NewCounterVec(prometheus.CounterOpts{
				Name: "bufferdb_executor_tasks_total",
				Help: "Query tasks by outcome",
			}, []string{"outcome"}),
			duration: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "bufferdb_executor_task_duration_seconds",
				Help:    "Query task run time",
				Buckets: prometheus.DefBuckets,
			}),
			rejected: f.NewCounter(prometheus.CounterOpts{
				Name: "bufferdb_executor_rejected_total",
				Help: "Query tasks rejected because the pool was saturated",
			}),
		}
	})
}

func (m *executorMetrics) RecordTask(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome(err)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *executorMetrics) RecordRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}
