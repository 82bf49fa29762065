package xkeylock

import "fmt"

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16
)

// Option Locker 配置项
type Option func(*options)

type options struct {
	maxKeys    int
	shardCount int
}

// WithMaxKeys 限制活跃 key 数量，n <= 0 不限制（默认）。
func WithMaxKeys(n int) Option {
	return func(o *options) {
		o.maxKeys = max(n, 0)
	}
}

// WithShardCount 设置分片数，必须是 2 的幂且不超过 65536，默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

func (o options) validate() error {
	n := o.shardCount
	if n <= 0 || n > maxShardCount || n&(n-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShardCount, n)
	}
	return nil
}
