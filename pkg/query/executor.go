// Package query runs read requests against recovered databases on a bounded
// worker pool shared by the RPC listener.
package query

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrOverloaded is returned when every worker is busy and the wait
	// queue is full.
	ErrOverloaded = errors.New("query executor overloaded")
	ErrClosed     = errors.New("query executor closed")
)

// Config sizes the pool. Zero Workers means GOMAXPROCS; zero QueueSize
// rejects work as soon as all workers are busy.
type Config struct {
	Workers   int
	QueueSize int
}

// Source resolves a database by name. *registry.Registry satisfies it.
type Source interface {
	Get(name string) (*db.Db, error)
}

// Executor is safe for concurrent use.
type Executor struct {
	pool    *ants.Pool
	metrics metrics.ExecutorMetrics
}

// NewExecutor starts the worker pool.
func NewExecutor(cfg Config) (*Executor, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	opts := []ants.Option{ants.WithNonblocking(true)}
	if cfg.QueueSize > 0 {
		opts = []ants.Option{ants.WithMaxBlockingTasks(cfg.QueueSize)}
	}

	pool, err := ants.NewPool(workers, opts...)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	logger.Debug("query executor started", "workers", workers, "queue_size", cfg.QueueSize)
	return &Executor{pool: pool, metrics: metrics.NewExecutorMetrics()}, nil
}

// Workers returns the pool capacity.
func (e *Executor) Workers() int { return e.pool.Cap() }

// Execute runs fn on the pool and waits for it to finish or for ctx to be
// done. fn receives ctx and should honour it.
func (e *Executor) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	task := func() {
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("query panicked: %v", r)
			}
			if e.metrics != nil {
				e.metrics.RecordTask(time.Since(start), err)
			}
			done <- err
		}()
		if err = ctx.Err(); err != nil {
			return
		}
		err = fn(ctx)
	}

	if err := e.pool.Submit(task); err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			if e.metrics != nil {
				e.metrics.RecordRejected()
			}
			return ErrOverloaded
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrClosed
		default:
			return err
		}
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release stops the pool. Queued tasks still run; new submissions fail
// with ErrClosed.
func (e *Executor) Release() {
	e.pool.Release()
}

// MeasurementNames lists the tables of database name.
func (e *Executor) MeasurementNames(ctx context.Context, src Source, name string) ([]string, error) {
	var out []string
	err := e.Execute(ctx, func(context.Context) error {
		d, err := src.Get(name)
		if err != nil {
			return err
		}
		out = d.TableNames()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TagKeys lists the tag keys of a table.
func (e *Executor) TagKeys(ctx context.Context, src Source, name, table string) ([]string, error) {
	var out []string
	err := e.Execute(ctx, func(context.Context) error {
		d, err := src.Get(name)
		if err != nil {
			return err
		}
		out, err = d.TagKeys(table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TagValues lists the values of one tag key in a table.
func (e *Executor) TagValues(ctx context.Context, src Source, name, table, key string) ([]string, error) {
	var out []string
	err := e.Execute(ctx, func(context.Context) error {
		d, err := src.Get(name)
		if err != nil {
			return err
		}
		out, err = d.TagValues(table, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFilter returns the rows of a table matching p, ordered by time.
func (e *Executor) ReadFilter(ctx context.Context, src Source, name string, p db.Predicate) ([]db.Point, error) {
	var out []db.Point
	err := e.Execute(ctx, func(context.Context) error {
		d, err := src.Get(name)
		if err != nil {
			return err
		}
		out, err = d.Select(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
