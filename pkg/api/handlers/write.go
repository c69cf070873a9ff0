package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/metrics"
)

// WriteHandler accepts line protocol writes.
type WriteHandler struct {
	registry Registry
	metrics  metrics.HTTPMetrics
	maxBody  int64
}

// NewWriteHandler returns a handler accepting at most maxBody decompressed
// bytes per request.
func NewWriteHandler(registry Registry, m metrics.HTTPMetrics, maxBody int64) *WriteHandler {
	return &WriteHandler{registry: registry, metrics: m, maxBody: maxBody}
}

// Write handles POST /api/v2/write?org=&bucket=[&precision=ns].
//
// The body is line protocol, optionally gzip encoded. The batch is applied
// all or nothing: 204 on success, 400 on a parse error, 404 when the
// database does not exist, 413 when the body exceeds the size limit.
func (h *WriteHandler) Write(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Query().Get("precision"); p != "" && p != "ns" {
		BadRequest(w, "unsupported precision "+p+": only ns is accepted")
		return
	}

	d, ok := databaseFromQuery(w, r, h.registry)
	if !ok {
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanHTTPWrite, telemetry.Database(d.Name()))
	defer span.End()

	body := io.Reader(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			BadRequest(w, "invalid gzip body")
			return
		}
		defer gz.Close()
		body = gz
		if h.maxBody > 0 {
			body = http.MaxBytesReader(w, gz, h.maxBody)
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLarge(w, "request body too large")
			return
		}
		BadRequest(w, "failed to read request body")
		return
	}

	n, err := d.Write(ctx, data)
	if err != nil {
		telemetry.RecordError(ctx, err)
		switch {
		case errors.Is(err, db.ErrParse):
			BadRequest(w, err.Error())
		case errors.Is(err, db.ErrClosed):
			ServiceUnavailable(w, "database is shutting down")
		default:
			logger.ErrorCtx(ctx, "Write failed", logger.Database(d.Name()), logger.Err(err))
			InternalServerError(w, "write failed")
		}
		return
	}

	telemetry.SetAttributes(ctx, telemetry.Lines(n))
	if h.metrics != nil {
		h.metrics.RecordPointsWritten(d.Name(), n)
	}
	logger.DebugCtx(ctx, "Points written", logger.Database(d.Name()), logger.Rows(n))
	w.WriteHeader(http.StatusNoContent)
}
