// Package lifecycle runs the network listeners side by side and joins
// their outcomes.
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/marmos91/bufferdb/internal/logger"
)

// Listener is a long-running network server.
//
// Bind opens the socket and must fail fast when the address is unusable.
// Serve runs until ctx is cancelled (returning nil) or the listener fails.
// Serve on a cancelled context releases a bound socket.
type Listener interface {
	Name() string
	Bind() error
	Serve(ctx context.Context) error
	Addr() net.Addr
}

// BindError reports a listener whose socket could not be opened.
type BindError struct {
	Listener string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s listener: %v", e.Listener, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// RuntimeError reports a listener that terminated abnormally.
type RuntimeError struct {
	Listener string
	Err      error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s listener: %v", e.Listener, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ReadyFunc receives the listeners once all of them are bound.
type ReadyFunc func(listeners []Listener)

// Run binds every listener in order, calls ready exactly once, then serves
// them concurrently until all have returned.
//
// A failing listener does not stop the others: Run waits for every one of
// them and returns the first failure in listener order. If a bind fails,
// the listeners already bound are released, nothing is served and ready is
// not called.
func Run(ctx context.Context, ready ReadyFunc, listeners ...Listener) error {
	for i, l := range listeners {
		if err := l.Bind(); err != nil {
			release(listeners[:i])
			return &BindError{Listener: l.Name(), Err: err}
		}
		logger.Debug("Listener bound", logger.Listener(l.Name()), logger.Addr(l.Addr().String()))
	}

	results := make([]error, len(listeners))
	var wg sync.WaitGroup
	for i, l := range listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.Serve(ctx)
			if results[i] != nil {
				logger.Error("Listener terminated", logger.Listener(l.Name()), logger.Err(results[i]))
			} else {
				logger.Debug("Listener stopped", logger.Listener(l.Name()))
			}
		}()
	}

	if ready != nil {
		ready(listeners)
	}

	wg.Wait()

	for i, err := range results {
		if err != nil {
			return &RuntimeError{Listener: listeners[i].Name(), Err: err}
		}
	}
	return nil
}

func release(bound []Listener) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, l := range bound {
		if err := l.Serve(ctx); err != nil {
			logger.Warn("Failed to release listener", logger.Listener(l.Name()), logger.Err(err))
		}
	}
}
