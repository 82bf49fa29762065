package xpool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xpool: nil context")
	// ErrEmptyTenant 租户标识为空
	ErrEmptyTenant = errors.New("xpool: empty tenant id")
	// ErrNilDialer 未配置 Dialer
	ErrNilDialer = errors.New("xpool: nil dialer")
	// ErrNilURIFunc 未配置 URI 构造函数
	ErrNilURIFunc = errors.New("xpool: nil uri builder")
	// ErrNilProvisioner 未配置 Provisioner
	ErrNilProvisioner = errors.New("xpool: nil provisioner")
	// ErrNilRegistry 未配置注册表
	ErrNilRegistry = errors.New("xpool: nil registry")

	// ErrConnection URI / 连接参数解析或打开连接失败，不写入缓存
	ErrConnection = errors.New("xpool: connection failed")
	// ErrTimeout 创建超过 Provisioner 的超时，总是与 ErrConnection 一起出现
	ErrTimeout = errors.New("xpool: provisioning timed out")
	// ErrMaterialize 物化集合失败
	ErrMaterialize = errors.New("xpool: materialize collections failed")
	// ErrBreakerOpen 该租户的熔断器处于打开状态
	ErrBreakerOpen = errors.New("xpool: circuit breaker open")
	// ErrPoolClosed 连接池已关闭
	ErrPoolClosed = errors.New("xpool: pool closed")
	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("xpool: connection closed")
	// ErrNoDatabase 连接没有可用的数据库句柄（测试替身）
	ErrNoDatabase = errors.New("xpool: connection has no database handle")
)

// connectionError 包装创建阶段的错误。
// 仅当 Provisioner 自己的截止时间到期（调用方 ctx 仍有效）时附加 ErrTimeout。
func connectionError(parent, bounded context.Context, tenant, stage string, err error) error {
	if bounded.Err() == context.DeadlineExceeded && parent.Err() == nil {
		return fmt.Errorf("%w: %w: tenant %s: %s: %w", ErrConnection, ErrTimeout, tenant, stage, err)
	}
	return fmt.Errorf("%w: tenant %s: %s: %w", ErrConnection, tenant, stage, err)
}
