package xkafka

import (
	"time"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
)

const componentName = "xkafka"

type consumerOptions struct {
	Logger       xlog.Logger
	Observer     xmetrics.Observer
	PollTimeout  time.Duration
	ErrorBackoff time.Duration
}

func defaultConsumerOptions() *consumerOptions {
	return &consumerOptions{
		Logger:       xlog.Discard(),
		Observer:     xmetrics.NoopObserver{},
		PollTimeout:  100 * time.Millisecond,
		ErrorBackoff: time.Second,
	}
}

// ConsumerOption 消费者配置项
type ConsumerOption func(*consumerOptions)

// WithLogger 设置日志。
func WithLogger(l xlog.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置观测器。
func WithObserver(obs xmetrics.Observer) ConsumerOption {
	return func(o *consumerOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithPollTimeout 单次 ReadMessage 的等待时间，默认 100ms。
func WithPollTimeout(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		if d > 0 {
			o.PollTimeout = d
		}
	}
}

// WithErrorBackoff 读取出错后的等待时间，默认 1s。
func WithErrorBackoff(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		if d > 0 {
			o.ErrorBackoff = d
		}
	}
}
