package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/db"
)

const tagParamPrefix = "tag."

// ReadHandler serves raw rows of one measurement.
type ReadHandler struct {
	registry Registry
}

func NewReadHandler(registry Registry) *ReadHandler {
	return &ReadHandler{registry: registry}
}

// Read handles GET /api/v2/read?org=&bucket=&measurement=&start=&stop=&tag.<k>=<v>.
// start and stop are Unix nanoseconds or RFC3339 timestamps.
func (h *ReadHandler) Read(w http.ResponseWriter, r *http.Request) {
	d, ok := databaseFromQuery(w, r, h.registry)
	if !ok {
		return
	}

	q := r.URL.Query()
	p := db.Predicate{Table: q.Get("measurement")}
	if p.Table == "" {
		BadRequest(w, "measurement is required")
		return
	}

	var err error
	if p.Start, err = parseTimestamp(q.Get("start")); err != nil {
		BadRequest(w, "invalid start: "+err.Error())
		return
	}
	if p.Stop, err = parseTimestamp(q.Get("stop")); err != nil {
		BadRequest(w, "invalid stop: "+err.Error())
		return
	}
	for key, vals := range q {
		if tag, found := strings.CutPrefix(key, tagParamPrefix); found && tag != "" && len(vals) > 0 {
			if p.Tags == nil {
				p.Tags = make(map[string]string)
			}
			p.Tags[tag] = vals[0]
		}
	}

	ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanHTTPRead,
		telemetry.Database(d.Name()), telemetry.Table(p.Table))
	defer span.End()

	pts, err := d.Select(p)
	if err != nil {
		telemetry.RecordError(ctx, err)
		switch {
		case errors.Is(err, db.ErrTableNotFound):
			NotFound(w, err.Error())
		case errors.Is(err, db.ErrInvalidRange):
			BadRequest(w, err.Error())
		default:
			InternalServerError(w, "read failed")
		}
		return
	}
	if pts == nil {
		pts = []db.Point{}
	}
	telemetry.SetAttributes(ctx, telemetry.Rows(len(pts)))
	writeJSON(w, http.StatusOK, okResponse(pts))
}

// parseTimestamp accepts Unix nanoseconds or RFC3339. Empty means open.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ns, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither nanoseconds nor RFC3339", s)
	}
	return t.UnixNano(), nil
}
