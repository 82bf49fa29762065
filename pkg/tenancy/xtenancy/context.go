package xtenancy

import (
	"context"
	"fmt"

	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
)

type connKey struct{}

// WithConnection 把租户连接放进 ctx。
func WithConnection(ctx context.Context, conn *xpool.Connection) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// ConnectionFrom 取出 ctx 中的租户连接。
func ConnectionFrom(ctx context.Context) (*xpool.Connection, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	conn, ok := ctx.Value(connKey{}).(*xpool.Connection)
	if !ok || conn == nil {
		return nil, ErrNoConnection
	}
	return conn, nil
}

// ModelFrom 取出 ctx 中租户连接上的模型。
func ModelFrom(ctx context.Context, name string) (*xpool.Model, error) {
	conn, err := ConnectionFrom(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := conn.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}
