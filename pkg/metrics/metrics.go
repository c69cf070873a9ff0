package metrics

import "time"

// RecoveryMetrics observes startup recovery.
type RecoveryMetrics interface {
	// ObserveDatabase records one database recovery attempt.
	ObserveDatabase(name string, rows int, duration time.Duration, err error)

	// ObserveRun records the whole recovery pass.
	ObserveRun(databases int, duration time.Duration)
}

// HTTPMetrics observes the HTTP listener.
type HTTPMetrics interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordPointsWritten(database string, points int)
}

// RPCMetrics observes the gRPC listener.
type RPCMetrics interface {
	RecordCall(method, code string, duration time.Duration)
}

// ExecutorMetrics observes the query worker pool.
type ExecutorMetrics interface {
	RecordTask(duration time.Duration, err error)
	RecordRejected()
}

var (
	newRecovery func() RecoveryMetrics
	newHTTP     func() HTTPMetrics
	newRPC      func() RPCMetrics
	newExecutor func() ExecutorMetrics
)

// Constructors is filled in by the implementation package.
type Constructors struct {
	Recovery func() RecoveryMetrics
	HTTP     func() HTTPMetrics
	RPC      func() RPCMetrics
	Executor func() ExecutorMetrics
}

// RegisterConstructors installs the metric implementations.
func RegisterConstructors(c Constructors) {
	mu.Lock()
	defer mu.Unlock()
	newRecovery, newHTTP, newRPC, newExecutor = c.Recovery, c.HTTP, c.RPC, c.Executor
}

func constructor[T any](f *func() T) func() T {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return nil
	}
	return *f
}

// NewRecoveryMetrics returns nil when metrics are disabled.
func NewRecoveryMetrics() RecoveryMetrics {
	if c := constructor(&newRecovery); c != nil {
		return c()
	}
	return nil
}

// NewHTTPMetrics returns nil when metrics are disabled.
func NewHTTPMetrics() HTTPMetrics {
	if c := constructor(&newHTTP); c != nil {
		return c()
	}
	return nil
}

// NewRPCMetrics returns nil when metrics are disabled.
func NewRPCMetrics() RPCMetrics {
	if c := constructor(&newRPC); c != nil {
		return c()
	}
	return nil
}

// NewExecutorMetrics returns nil when metrics are disabled.
func NewExecutorMetrics() ExecutorMetrics {
	if c := constructor(&newExecutor); c != nil {
		return c()
	}
	return nil
}
