package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledReturnsNil(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, metrics.NewRecoveryMetrics())
	assert.Nil(t, metrics.NewHTTPMetrics())
	assert.Nil(t, metrics.NewRPCMetrics())
	assert.Nil(t, metrics.NewExecutorMetrics())
}

func TestRecoveryMetrics(t *testing.T) {
	reg := metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m := metrics.NewRecoveryMetrics()
	require.NotNil(t, m)
	m.ObserveDatabase("a", 10, time.Millisecond, nil)
	m.ObserveDatabase("b", 0, time.Millisecond, errors.New("bad"))
	m.ObserveRun(1, time.Second)

	impl := m.(*recoveryMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.databases.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.databases.WithLabelValues("error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(impl.rows))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.runDBs))

	n, err := testutil.GatherAndCount(reg, "bufferdb_recovery_databases_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHTTPAndRPCMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	h := metrics.NewHTTPMetrics().(*httpMetrics)
	h.RecordRequest("POST", "/api/v2/write", 204, time.Millisecond)
	h.RecordPointsWritten("telegraf", 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.requests.WithLabelValues("POST", "/api/v2/write", "204")))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.points.WithLabelValues("telegraf")))

	r := metrics.NewRPCMetrics().(*rpcMetrics)
	r.RecordCall("TagKeys", "NotFound", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("TagKeys", "NotFound")))

	e := metrics.NewExecutorMetrics().(*executorMetrics)
	e.RecordRejected()
	e.RecordTask(time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.rejected))
}

func TestNilReceiversAreSafe(t *testing.T) {
	var r *recoveryMetrics
	var h *httpMetrics
	var c *rpcMetrics
	var e *executorMetrics
	assert.NotPanics(t, func() {
		r.ObserveDatabase("x", 1, 0, nil)
		r.ObserveRun(1, 0)
		h.RecordRequest("GET", "/", 200, 0)
		h.RecordPointsWritten("x", 1)
		c.RecordCall("m", "OK", 0)
		e.RecordTask(0, nil)
		e.RecordRejected()
	})
}

func TestConstructorsShareCollectors(t *testing.T) {
	reg := metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	var first, second metrics.RecoveryMetrics
	require.NotPanics(t, func() {
		first = metrics.NewRecoveryMetrics()
		second = metrics.NewRecoveryMetrics()
		metrics.NewHTTPMetrics()
		metrics.NewHTTPMetrics()
		metrics.NewRPCMetrics()
		metrics.NewRPCMetrics()
		metrics.NewExecutorMetrics()
		metrics.NewExecutorMetrics()
	})
	first.ObserveDatabase("a", 1, time.Millisecond, nil)
	second.ObserveDatabase("b", 1, time.Millisecond, nil)

	n, err := testutil.GatherAndCount(reg, "bufferdb_recovery_databases_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(first.(*recoveryMetrics).databases.WithLabelValues("success")))

	// A fresh registry gets fresh collectors.
	metrics.InitRegistry()
	assert.NotSame(t, first, metrics.NewRecoveryMetrics())
}
