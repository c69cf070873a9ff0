package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lines = "cpu,host=a,region=eu usage=0.5 100\n" +
	"cpu,host=b,region=eu usage=0.7 200\n" +
	"mem,host=a used=42i 150\n"

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	d := db.New("telegraf", nil)
	_, err := d.Write(context.Background(), []byte(lines))
	require.NoError(t, err)

	b := registry.NewBuilder()
	require.NoError(t, b.Insert("telegraf", d))
	return b.Freeze()
}

func newExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	e, err := NewExecutor(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e
}

func TestExecute(t *testing.T) {
	e := newExecutor(t, Config{Workers: 2})

	t.Run("ReturnsResult", func(t *testing.T) {
		ran := false
		err := e.Execute(context.Background(), func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("PropagatesError", func(t *testing.T) {
		boom := errors.New("boom")
		err := e.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := e.Execute(ctx, func(context.Context) error {
			t.Error("task must not run")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("DeadlineWhileRunning", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := e.Execute(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("PanicBecomesError", func(t *testing.T) {
		err := e.Execute(context.Background(), func(context.Context) error { panic("bad predicate") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad predicate")
	})
}

func TestExecuteOverloaded(t *testing.T) {
	e := newExecutor(t, Config{Workers: 1})
	assert.Equal(t, 1, e.Workers())

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = e.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	err := e.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestExecuteAfterRelease(t *testing.T) {
	e, err := NewExecutor(Config{Workers: 1})
	require.NoError(t, err)
	e.Release()

	err = e.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDefaultWorkers(t *testing.T) {
	e := newExecutor(t, Config{})
	assert.Positive(t, e.Workers())
}

func TestQueries(t *testing.T) {
	reg := newRegistry(t)
	e := newExecutor(t, Config{Workers: 4, QueueSize: 16})
	ctx := context.Background()

	t.Run("MeasurementNames", func(t *testing.T) {
		names, err := e.MeasurementNames(ctx, reg, "telegraf")
		require.NoError(t, err)
		assert.Equal(t, []string{"cpu", "mem"}, names)
	})

	t.Run("TagKeys", func(t *testing.T) {
		keys, err := e.TagKeys(ctx, reg, "telegraf", "cpu")
		require.NoError(t, err)
		assert.Equal(t, []string{"host", "region"}, keys)
	})

	t.Run("TagValues", func(t *testing.T) {
		vals, err := e.TagValues(ctx, reg, "telegraf", "cpu", "host")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, vals)
	})

	t.Run("ReadFilter", func(t *testing.T) {
		pts, err := e.ReadFilter(ctx, reg, "telegraf", db.Predicate{
			Table: "cpu",
			Tags:  map[string]string{"host": "b"},
		})
		require.NoError(t, err)
		require.Len(t, pts, 1)
		assert.Equal(t, int64(200), pts[0].Time)
		assert.Equal(t, 0.7, pts[0].Fields["usage"])
	})

	t.Run("UnknownDatabase", func(t *testing.T) {
		_, err := e.MeasurementNames(ctx, reg, "nope")
		assert.ErrorIs(t, err, db.ErrDatabaseNotFound)
	})

	t.Run("UnknownTable", func(t *testing.T) {
		_, err := e.TagKeys(ctx, reg, "telegraf", "disk")
		assert.ErrorIs(t, err, db.ErrTableNotFound)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		_, err := e.ReadFilter(ctx, reg, "telegraf", db.Predicate{Table: "cpu", Start: 10, Stop: 5})
		assert.ErrorIs(t, err, db.ErrInvalidRange)
	})
}
