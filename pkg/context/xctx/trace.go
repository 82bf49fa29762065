package xctx

import (
	"context"

	"github.com/google/uuid"
)

// KeyRequestID 日志属性名
const KeyRequestID = "request_id"

const keyRequestID = contextKey("xctx:request_id")

// WithRequestID 将 request ID 注入 context
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyRequestID, requestID), nil
}

// RequestID 从 context 提取 request ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// RequireRequestID 从 context 提取 request ID，为空时返回 ErrMissingRequestID
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := RequestID(ctx)
	if v == "" {
		return "", ErrMissingRequestID
	}
	return v, nil
}

// EnsureRequestID 确保 context 携带 request ID。
// 已存在时原样返回，否则生成 UUIDv7（按时间有序，便于日志检索）。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return context.WithValue(ctx, keyRequestID, id.String()), nil
}
