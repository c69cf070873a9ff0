package logger

import (
	"log/slog"
)

// Standard field keys. Use these consistently so logs can be aggregated and
// queried across the RPC and HTTP listeners.
const (
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyRequestID = "request_id"

	// Listeners
	KeyListener = "listener" // grpc or http
	KeyAddr     = "addr"
	KeyMethod   = "method"
	KeyRoute    = "route"
	KeyStatus   = "status"
	KeyClientIP = "client_ip"

	// Storage
	KeyDatabase = "database"
	KeyDir      = "dir"
	KeySegment  = "segment"
	KeySequence = "sequence"
	KeyEntries  = "entries"
	KeyRows     = "rows"
	KeyTable    = "table"
	KeyBytes    = "bytes"

	// Outcome
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

func Listener(name string) slog.Attr {
	return slog.String(KeyListener, name)
}

func Addr(addr string) slog.Attr {
	return slog.String(KeyAddr, addr)
}

func Database(name string) slog.Attr {
	return slog.String(KeyDatabase, name)
}

func Dir(path string) slog.Attr {
	return slog.String(KeyDir, path)
}

func Segment(name string) slog.Attr {
	return slog.String(KeySegment, name)
}

func Sequence(seq uint64) slog.Attr {
	return slog.Uint64(KeySequence, seq)
}

func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

func Rows(n int) slog.Attr {
	return slog.Int(KeyRows, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an error attribute; nil errors produce an empty attribute
// which the handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
