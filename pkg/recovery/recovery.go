// Package recovery rebuilds every database under the data directory from
// its write-ahead log before any listener starts.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/marmos91/bufferdb/pkg/registry"
)

// RecoverFunc rebuilds one database from its WAL directory.
type RecoverFunc func(ctx context.Context, dir string) (*db.Db, error)

// Error reports the directory whose recovery failed.
type Error struct {
	Dir string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recover %s: %v", e.Dir, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Orchestrator recovers databases one directory at a time.
type Orchestrator struct {
	recover RecoverFunc
	metrics metrics.RecoveryMetrics
}

// Restore returns a RecoverFunc replaying each WAL directory with opts.
func Restore(opts db.Options) RecoverFunc {
	return func(ctx context.Context, dir string) (*db.Db, error) {
		return db.RestoreFromWAL(ctx, dir, opts)
	}
}

// NewWithFunc returns an orchestrator using fn to recover each directory.
func NewWithFunc(fn RecoverFunc) *Orchestrator {
	return &Orchestrator{recover: fn, metrics: metrics.NewRecoveryMetrics()}
}

// Run lists the WAL directories under root in lexical order and recovers
// them sequentially, inserting each database into the registry before
// moving to the next. The first failure aborts the pass: databases already
// recovered are closed and no registry is returned.
func (o *Orchestrator) Run(ctx context.Context, root string) (*registry.Registry, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRecoveryRun, telemetry.Dir(root))
	defer span.End()
	start := time.Now()

	dirs, err := registry.WALDirs(root)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, &Error{Dir: root, Err: err}
	}

	b := registry.NewBuilder()
	var recovered []*db.Db
	abandon := func() {
		for _, d := range recovered {
			if cerr := d.Close(); cerr != nil {
				logger.Warn("Failed to close database after aborted recovery", logger.Database(d.Name()), logger.Err(cerr))
			}
		}
	}

	for _, dir := range dirs {
		d, err := o.recoverOne(ctx, dir)
		if err == nil {
			recovered = append(recovered, d)
			err = b.Insert(d.Name(), d)
		}
		if err != nil {
			abandon()
			telemetry.RecordError(ctx, err)
			logger.Error("Recovery failed", logger.Dir(dir), logger.Err(err))
			return nil, &Error{Dir: dir, Err: err}
		}
	}

	reg := b.Freeze()
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.ObserveRun(reg.Len(), elapsed)
	}
	logger.Info("Recovery complete", "databases", reg.Len(), logger.DurationMs(logger.Duration(start)))
	return reg, nil
}

func (o *Orchestrator) recoverOne(ctx context.Context, dir string) (*db.Db, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRecoveryDatabase, telemetry.Dir(dir))
	defer span.End()
	start := time.Now()

	d, err := o.recover(ctx, dir)
	if err == nil && d == nil {
		err = errors.New("recovery returned no database")
	}
	rows := 0
	if err == nil {
		rows = d.Stats().Rows
		telemetry.SetAttributes(ctx, telemetry.Database(d.Name()), telemetry.Rows(rows))
	} else {
		telemetry.RecordError(ctx, err)
	}
	if o.metrics != nil {
		o.metrics.ObserveDatabase(dir, rows, time.Since(start), err)
	}
	return d, err
}
