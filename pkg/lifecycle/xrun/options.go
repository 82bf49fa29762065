package xrun

import (
	"context"
	"os"
	"syscall"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
)

type options struct {
	logger   xlog.Logger
	name     string
	signals  []os.Signal
	noSignal bool
}

// Option Group 配置项
type Option func(*options)

// WithLogger 设置日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName 设置 Group 名，出现在日志中。
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSignals 替换监听的信号。
func WithSignals(signals ...os.Signal) Option {
	return func(o *options) { o.signals = signals }
}

// WithoutSignalHandler 不监听信号，由调用方取消 ctx。
func WithoutSignalHandler() Option {
	return func(o *options) { o.noSignal = true }
}

// DefaultSignals SIGINT、SIGTERM、SIGQUIT
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

type testSigChanKey struct{}

// testSigChan 测试通过 ctx 注入信号，避免向进程发送真实信号。
func testSigChan(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}
