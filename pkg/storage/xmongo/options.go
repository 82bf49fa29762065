package xmongo

import (
	"time"

	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
)

const (
	defaultHealthTimeout          = 5 * time.Second
	defaultServerSelectionTimeout = 10 * time.Second
	defaultConnectTimeout         = 10 * time.Second
	defaultAppName                = "xtenancy"

	// DefaultDatabase URI 未指定数据库时使用的库名
	DefaultDatabase = "test"
)

// Options Dialer 配置
type Options struct {
	// HealthTimeout Health 的超时，默认 5s
	HealthTimeout time.Duration
	// ServerSelectionTimeout 基线服务选择超时，默认 10s
	ServerSelectionTimeout time.Duration
	// ConnectTimeout 基线连接超时，默认 10s
	ConnectTimeout time.Duration
	// AppName 基线 AppName，默认 "xtenancy"
	AppName string
	// PingOnDial 打开后立即 Ping，使不可达的地址在 Dial 阶段失败，默认开启
	PingOnDial bool
	// Observer 观测器，默认 NoopObserver
	Observer xmetrics.Observer
}

// Option 配置项
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout:          defaultHealthTimeout,
		ServerSelectionTimeout: defaultServerSelectionTimeout,
		ConnectTimeout:         defaultConnectTimeout,
		AppName:                defaultAppName,
		PingOnDial:             true,
		Observer:               xmetrics.NoopObserver{},
	}
}

// WithHealthTimeout 设置健康检查超时，非正值忽略。
func WithHealthTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithServerSelectionTimeout 设置基线服务选择超时，非正值忽略。
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ServerSelectionTimeout = d
		}
	}
}

// WithConnectTimeout 设置基线连接超时，非正值忽略。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

// WithAppName 设置 AppName，空值忽略。
func WithAppName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.AppName = name
		}
	}
}

// WithPingOnDial 设置是否在 Dial 时 Ping。
func WithPingOnDial(enable bool) Option {
	return func(o *Options) {
		o.PingOnDial = enable
	}
}

// WithObserver 设置观测器，nil 忽略。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}
