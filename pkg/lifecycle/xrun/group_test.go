package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_ServiceError(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})
	err := Run(context.Background(), []Option{WithoutSignalHandler()},
		Service{Name: "failing", Run: func(context.Context) error { return boom }},
		Service{Name: "waiting", Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		}},
	)
	assert.ErrorIs(t, err, boom)
	<-stopped
}

func TestRun_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, []Option{WithoutSignalHandler()},
		Service{Name: "svc", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	assert.NoError(t, err)
}

func TestRun_Signal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	ctx := withTestSigChan(context.Background(), sigCh)
	sigCh <- syscall.SIGTERM

	closed := false
	err := Run(ctx, nil,
		Service{Name: "closer", Run: Closer(func(context.Context) error {
			closed = true
			return nil
		}, time.Second)},
	)
	require.ErrorIs(t, err, ErrSignal)
	var se *SignalError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, syscall.SIGTERM, se.Signal)
	assert.True(t, closed)
}

func TestGroup_Cancel(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go("svc", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cause := errors.New("shutdown requested")
	g.Cancel(cause)
	assert.ErrorIs(t, g.Wait(), cause)
}

func TestGroup_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go("nil", nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestCloser_UsesFreshContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var live bool
	err := Closer(func(ctx context.Context) error {
		live = ctx.Err() == nil
		return errors.New("close failed")
	}, time.Second)(ctx)
	assert.EqualError(t, err, "close failed")
	assert.True(t, live)
}

func TestHTTPServer(t *testing.T) {
	assert.ErrorIs(t, HTTPServer(nil, 0)(context.Background()), ErrNilServer)

	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- HTTPServer(srv, time.Second)(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestGRPCServer(t *testing.T) {
	assert.ErrorIs(t, GRPCServer(nil, nil, 0)(context.Background()), ErrNilServer)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- GRPCServer(srv, lis, time.Second)(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
