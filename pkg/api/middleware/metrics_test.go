package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, route string
	status        int
}

type fakeMetrics struct {
	mu   sync.Mutex
	reqs []recorded
}

func (f *fakeMetrics) RecordRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recorded{method, route, status})
}

func (f *fakeMetrics) RecordPointsWritten(string, int) {}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := &fakeMetrics{}
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v2/databases/{name}/tables", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v2/databases/a/tables", "/api/v2/databases/b/tables", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, m.reqs, 3)
	assert.Equal(t, recorded{"GET", "/api/v2/databases/{name}/tables", http.StatusTeapot}, m.reqs[0])
	assert.Equal(t, m.reqs[0], m.reqs[1])
	assert.Equal(t, recorded{"GET", "/ok", http.StatusOK}, m.reqs[2])
}

func TestMetricsNilPassesThrough(t *testing.T) {
	called := false
	h := Metrics(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
