package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/query"
	"github.com/marmos91/bufferdb/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const sample = "cpu,host=a usage=0.5 100\n" +
	"cpu,host=b usage=0.7 200\n" +
	"cpu,host=a usage=0.9 300\n"

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	d := db.New("telegraf", nil)
	_, err := d.Write(context.Background(), []byte(sample))
	require.NoError(t, err)

	b := registry.NewBuilder()
	require.NoError(t, b.Insert("telegraf", d))
	require.NoError(t, b.Insert("empty", db.New("empty", nil)))
	return b.Freeze()
}

// startServer binds a loopback listener and serves it until the test ends.
func startServer(t *testing.T) (*Client, *Server) {
	t.Helper()
	exec, err := query.NewExecutor(query.Config{Workers: 2, QueueSize: 8})
	require.NoError(t, err)
	t.Cleanup(exec.Release)

	srv := NewServer(Config{Addr: "127.0.0.1:0", RequestTimeout: 5 * time.Second}, testRegistry(t), exec)
	require.NoError(t, srv.Bind())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-served)
	})

	c, err := Dial(srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestStorageService(t *testing.T) {
	c, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("ListDatabases", func(t *testing.T) {
		resp, err := c.ListDatabases(ctx)
		require.NoError(t, err)
		require.Len(t, resp.Databases, 2)
		assert.Equal(t, "empty", resp.Databases[0].Name)
		assert.Equal(t, "telegraf", resp.Databases[1].Name)
		assert.Equal(t, 3, resp.Databases[1].Rows)
	})

	t.Run("MeasurementNames", func(t *testing.T) {
		resp, err := c.MeasurementNames(ctx, &MeasurementNamesRequest{Database: "telegraf"})
		require.NoError(t, err)
		assert.Equal(t, []string{"cpu"}, resp.Values)

		resp, err = c.MeasurementNames(ctx, &MeasurementNamesRequest{Database: "empty"})
		require.NoError(t, err)
		assert.Empty(t, resp.Values)
	})

	t.Run("TagKeysAndValues", func(t *testing.T) {
		keys, err := c.TagKeys(ctx, &TagKeysRequest{Database: "telegraf", Measurement: "cpu"})
		require.NoError(t, err)
		assert.Equal(t, []string{"host"}, keys.Values)

		vals, err := c.TagValues(ctx, &TagValuesRequest{Database: "telegraf", Measurement: "cpu", TagKey: "host"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, vals.Values)
	})

	t.Run("ReadFilter", func(t *testing.T) {
		resp, err := c.ReadFilter(ctx, &ReadFilterRequest{
			Database:    "telegraf",
			Measurement: "cpu",
			Start:       150,
			Tags:        map[string]string{"host": "a"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Points, 1)
		assert.Equal(t, int64(300), resp.Points[0].Time)
		assert.Equal(t, 0.9, resp.Points[0].Fields["usage"])
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			call func() error
			code codes.Code
		}{
			{"UnknownDatabase", func() error {
				_, err := c.MeasurementNames(ctx, &MeasurementNamesRequest{Database: "nope"})
				return err
			}, codes.NotFound},
			{"UnknownMeasurement", func() error {
				_, err := c.TagKeys(ctx, &TagKeysRequest{Database: "telegraf", Measurement: "disk"})
				return err
			}, codes.NotFound},
			{"MissingDatabase", func() error {
				_, err := c.MeasurementNames(ctx, &MeasurementNamesRequest{})
				return err
			}, codes.InvalidArgument},
			{"MissingTagKey", func() error {
				_, err := c.TagValues(ctx, &TagValuesRequest{Database: "telegraf", Measurement: "cpu"})
				return err
			}, codes.InvalidArgument},
			{"InvalidRange", func() error {
				_, err := c.ReadFilter(ctx, &ReadFilterRequest{Database: "telegraf", Measurement: "cpu", Start: 9, Stop: 1})
				return err
			}, codes.InvalidArgument},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.code, status.Code(tt.call()))
			})
		}
	})

	t.Run("Health", func(t *testing.T) {
		st, err := c.Health(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

		st, err = c.Health(ctx, ServiceName)
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)
	})
}

func TestBindConflict(t *testing.T) {
	exec, err := query.NewExecutor(query.Config{Workers: 1})
	require.NoError(t, err)
	defer exec.Release()
	reg := registry.NewBuilder().Freeze()

	first := NewServer(Config{Addr: "127.0.0.1:0"}, reg, exec)
	require.NoError(t, first.Bind())
	defer func() { _ = first.Serve(canceled()) }()

	second := NewServer(Config{Addr: first.Addr().String()}, reg, exec)
	err = second.Bind()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind grpc listener")
}

func TestServeWithoutBind(t *testing.T) {
	srv := NewServer(Config{Addr: "127.0.0.1:0"}, registry.NewBuilder().Freeze(), nil)
	assert.Nil(t, srv.Addr())
	assert.ErrorIs(t, srv.Serve(context.Background()), errNotBound)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := NewServer(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, registry.NewBuilder().Freeze(), nil)
	require.NoError(t, srv.Bind())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("x: %w", db.ErrDatabaseNotFound), codes.NotFound},
		{db.ErrTableNotFound, codes.NotFound},
		{db.ErrInvalidRange, codes.InvalidArgument},
		{query.ErrOverloaded, codes.ResourceExhausted},
		{query.ErrClosed, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("other"), codes.Internal},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}
	assert.NoError(t, toStatus(nil))
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
