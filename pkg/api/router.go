package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/api/handlers"
	apimw "github.com/marmos91/bufferdb/pkg/api/middleware"
	"github.com/marmos91/bufferdb/pkg/metrics"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /ping, GET /health, GET /health/ready
//   - POST /api/v2/write
//   - GET /api/v2/databases, GET /api/v2/databases/{name}/tables
//   - GET /api/v2/read
//   - GET /metrics (only when metrics are enabled)
func NewRouter(cfg Config, registry handlers.Registry) http.Handler {
	cfg.applyDefaults()
	httpMetrics := metrics.NewHTTPMetrics()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(apimw.Metrics(httpMetrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(cfg.MaxBodySize))

	health := handlers.NewHealthHandler(registry, cfg.Version)
	r.Get("/ping", health.Ping)
	r.Head("/ping", health.Ping)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	writes := handlers.NewWriteHandler(registry, httpMetrics, cfg.MaxBodySize)
	dbs := handlers.NewDatabaseHandler(registry)
	reads := handlers.NewReadHandler(registry)

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/write", writes.Write)
		r.Get("/read", reads.Read)
		r.Get("/databases", dbs.List)
		r.Get("/databases/{name}/tables", dbs.Tables)
	})

	if reg := metrics.GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		lc := logger.NewLogContext(r.RemoteAddr).WithMethod(r.Method + " " + r.URL.Path)
		lc.RequestID = requestID
		ctx := logger.WithContext(r.Context(), lc)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.DebugCtx(ctx, "API request completed",
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}
