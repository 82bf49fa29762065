package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

// HTTPServer 运行 srv，ctx 取消后在 timeout 内优雅关闭。
func HTTPServer(srv *http.Server, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if srv == nil {
			return ErrNilServer
		}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		sctx, cancel := shutdownContext(timeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
			err = errors.Join(err, serveErr)
		}
		return err
	}
}

// GRPCServer 在 lis 上运行 srv，ctx 取消后 GracefulStop，超时则强制 Stop。
func GRPCServer(srv *grpc.Server, lis net.Listener, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if srv == nil || lis == nil {
			return ErrNilServer
		}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		sctx, cancel := shutdownContext(timeout)
		defer cancel()
		select {
		case <-stopped:
		case <-sctx.Done():
			srv.Stop()
			<-stopped
		}
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	}
}

// Closer 等待 ctx 取消后以 timeout 调用 fn，用于退出时释放资源。
func Closer(fn func(ctx context.Context) error, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if fn == nil {
			return ErrNilFunc
		}
		<-ctx.Done()
		cctx, cancel := shutdownContext(timeout)
		defer cancel()
		return fn(cctx)
	}
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
