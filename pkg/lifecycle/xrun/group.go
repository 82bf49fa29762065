package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
)

// Service 具名服务
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Group 一组共享生命周期的服务。
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	root   context.Context
	cancel context.CancelCauseFunc
	opts   *options
}

// NewGroup 创建 Group，返回的 ctx 在任一服务失败或 Cancel 时取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := &options{logger: xlog.Discard(), name: "main"}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	root, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(root)
	return &Group{eg: eg, ctx: egCtx, root: root, cancel: cancel, opts: o}, egCtx
}

// Go 启动服务。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	logger := g.opts.logger.With(slog.String("group", g.opts.name), slog.String("service", name))
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		logger.Debug(g.ctx, "service starting")
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn(g.ctx, "service exited with error", xlog.Err(err))
		} else {
			logger.Debug(g.ctx, "service stopped")
		}
		return err
	})
}

// Cancel 以 cause 取消全部服务。
func (g *Group) Cancel(cause error) { g.cancel(cause) }

// Wait 等待全部服务退出。
// 由 Cancel 触发的退出返回 cause（nil 或 context.Canceled 视为正常退出）。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()
	cause := context.Cause(g.root)
	if g.root.Err() != nil && cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if errors.Is(err, context.Canceled) && g.root.Err() != nil {
		return nil
	}
	return err
}

// Run 运行 services 直到其中之一失败或收到信号。
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.opts.noSignal {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go("signal", func(ctx context.Context) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)
			var sig os.Signal
			select {
			case sig = <-testSigChan(ctx):
			case sig = <-sigCh:
			case <-ctx.Done():
				return nil
			}
			g.opts.logger.Info(ctx, "received signal", slog.String("signal", sig.String()))
			g.cancel(&SignalError{Signal: sig})
			return nil
		})
	}
	for _, svc := range services {
		g.Go(svc.Name, svc.Run)
	}
	return g.Wait()
}
