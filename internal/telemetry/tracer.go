package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys.
const (
	AttrDatabase  = "bufferdb.database"
	AttrDir       = "bufferdb.dir"
	AttrTable     = "bufferdb.table"
	AttrRows      = "bufferdb.rows"
	AttrLines     = "bufferdb.lines"
	AttrRPCMethod = "rpc.method"
	AttrClientIP  = "client.ip"
	AttrKey       = "storage.key"
)

// Span names.
const (
	SpanRecoveryRun      = "recovery.run"
	SpanRecoveryDatabase = "recovery.database"
	SpanHTTPWrite        = "http.write"
	SpanHTTPRead         = "http.read"
	SpanRPCPrefix        = "rpc."
	SpanBackupUpload     = "backup.upload"
)

func Database(name string) attribute.KeyValue  { return attribute.String(AttrDatabase, name) }
func Dir(path string) attribute.KeyValue       { return attribute.String(AttrDir, path) }
func Table(name string) attribute.KeyValue     { return attribute.String(AttrTable, name) }
func Rows(n int) attribute.KeyValue            { return attribute.Int(AttrRows, n) }
func Lines(n int) attribute.KeyValue           { return attribute.Int(AttrLines, n) }
func RPCMethod(name string) attribute.KeyValue { return attribute.String(AttrRPCMethod, name) }
func ClientIP(ip string) attribute.KeyValue    { return attribute.String(AttrClientIP, ip) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }
