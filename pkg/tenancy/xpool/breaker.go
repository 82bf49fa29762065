package xpool

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig 按租户熔断连接创建。
//
// 后端不可达时，同一租户的连续失败达到阈值后熔断器打开，
// 在 OpenTimeout 内直接返回 ErrBreakerOpen，不再发起连接。
type BreakerConfig struct {
	// Failures 连续失败次数阈值，0 表示不启用
	Failures uint32 `koanf:"failures"`
	// OpenTimeout 打开状态持续时间，默认 30s
	OpenTimeout time.Duration `koanf:"open_timeout"`
	// Capacity 最多保留的租户熔断器数，按 LRU 淘汰，默认 1024
	Capacity int `koanf:"capacity"`
}

const (
	defaultBreakerOpenTimeout = 30 * time.Second
	defaultBreakerCapacity    = 1024
)

// Enabled 报告是否启用熔断。
func (c BreakerConfig) Enabled() bool { return c.Failures > 0 }

type breakers struct {
	cfg   BreakerConfig
	cache *lru.Cache[string, *gobreaker.CircuitBreaker[*Connection]]
}

func newBreakers(cfg BreakerConfig) (*breakers, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultBreakerOpenTimeout
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultBreakerCapacity
	}
	cache, err := lru.New[string, *gobreaker.CircuitBreaker[*Connection]](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &breakers{cfg: cfg, cache: cache}, nil
}

func (b *breakers) get(tenant string) *gobreaker.CircuitBreaker[*Connection] {
	if cb, ok := b.cache.Get(tenant); ok {
		return cb
	}
	threshold := b.cfg.Failures
	cb := gobreaker.NewCircuitBreaker[*Connection](gobreaker.Settings{
		Name:        tenant,
		MaxRequests: 1,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// 调用方取消不代表后端故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	// 并发首次创建时以先写入者为准
	if prev, ok, _ := b.cache.PeekOrAdd(tenant, cb); ok {
		return prev
	}
	return cb
}

// execute 经熔断器执行 fn；b 为 nil 时直接执行。
func (b *breakers) execute(tenant string, fn func() (*Connection, error)) (*Connection, error) {
	if b == nil {
		return fn()
	}
	conn, err := b.get(tenant).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrConnection, ErrBreakerOpen, err)
	}
	return conn, err
}

// state 返回租户熔断器状态，未创建时为 closed。
func (b *breakers) state(tenant string) gobreaker.State {
	if b == nil {
		return gobreaker.StateClosed
	}
	if cb, ok := b.cache.Peek(tenant); ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
