package lifecycle

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type stubListener struct {
	name    string
	bindErr error
	serve   func(ctx context.Context) error
	j       *journal
}

func (s *stubListener) Name() string { return s.name }

func (s *stubListener) Bind() error {
	s.j.add("bind:" + s.name)
	return s.bindErr
}

func (s *stubListener) Serve(ctx context.Context) error {
	s.j.add("serve:" + s.name)
	if s.serve == nil {
		<-ctx.Done()
		return nil
	}
	return s.serve(ctx)
}

func (s *stubListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func untilStopped(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestRunReadyOnceAfterAllBinds(t *testing.T) {
	j := &journal{}
	rpc := &stubListener{name: "grpc", j: j}
	http := &stubListener{name: "http", j: j}

	ctx, cancel := context.WithCancel(context.Background())
	readyCalls := 0
	err := Run(ctx, func(ls []Listener) {
		readyCalls++
		j.add("ready")
		assert.Len(t, ls, 2)
		cancel()
	}, rpc, http)

	require.NoError(t, err)
	assert.Equal(t, 1, readyCalls)

	events := j.list()
	ready := indexOf(events, "ready")
	require.GreaterOrEqual(t, ready, 2)
	assert.Equal(t, []string{"bind:grpc", "bind:http"}, events[:2])
}

func TestRunWaitsForBothListeners(t *testing.T) {
	j := &journal{}
	rpcErr := errors.New("accept: too many open files")
	rpc := &stubListener{name: "grpc", j: j, serve: func(context.Context) error { return rpcErr }}
	http := &stubListener{name: "http", j: j, serve: untilStopped}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, nil, rpc, http) }()

	select {
	case err := <-done:
		t.Fatalf("Run returned while the http listener was still serving: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after external stop")
	}

	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "grpc", rerr.Listener)
	assert.ErrorIs(t, err, rpcErr)
}

func TestRunReportsRPCFirst(t *testing.T) {
	j := &journal{}
	rpcErr := errors.New("rpc down")
	httpErr := errors.New("http down")
	rpc := &stubListener{name: "grpc", j: j, serve: func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return rpcErr
	}}
	http := &stubListener{name: "http", j: j, serve: func(context.Context) error { return httpErr }}

	err := Run(context.Background(), nil, rpc, http)
	assert.ErrorIs(t, err, rpcErr)
	assert.NotErrorIs(t, err, httpErr)
}

func TestRunHTTPFailureReported(t *testing.T) {
	j := &journal{}
	httpErr := errors.New("http down")
	rpc := &stubListener{name: "grpc", j: j, serve: untilStopped}
	http := &stubListener{name: "http", j: j, serve: func(context.Context) error { return httpErr }}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := Run(ctx, nil, rpc, http)

	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "http", rerr.Listener)
}

func TestRunBindFailure(t *testing.T) {
	t.Run("SecondListener", func(t *testing.T) {
		j := &journal{}
		inUse := errors.New("address already in use")
		rpc := &stubListener{name: "grpc", j: j}
		http := &stubListener{name: "http", j: j, bindErr: inUse}

		err := Run(context.Background(), func([]Listener) { t.Error("ready must not fire") }, rpc, http)

		var berr *BindError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, "http", berr.Listener)
		assert.ErrorIs(t, err, inUse)
		// The bound rpc listener is released through a cancelled Serve.
		assert.Equal(t, []string{"bind:grpc", "bind:http", "serve:grpc"}, j.list())
	})

	t.Run("FirstListener", func(t *testing.T) {
		j := &journal{}
		rpc := &stubListener{name: "grpc", j: j, bindErr: errors.New("permission denied")}
		http := &stubListener{name: "http", j: j}

		err := Run(context.Background(), nil, rpc, http)
		var berr *BindError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, "grpc", berr.Listener)
		assert.Equal(t, []string{"bind:grpc"}, j.list())
	})
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
