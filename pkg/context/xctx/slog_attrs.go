package xctx

import (
	"context"
	"log/slog"
)

// AppendAttrs 将 context 中非空的 tenant_id / request_id 追加到 attrs。
// 调用方传入预分配切片可避免热路径分配。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := TenantID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTenantID, v))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	return attrs
}

// Attrs 返回 context 中的日志属性，全部为空时返回 nil。
func Attrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, 2), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
