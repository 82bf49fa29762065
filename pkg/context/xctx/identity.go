package xctx

import "context"

// KeyTenantID 日志属性名
const KeyTenantID = "tenant_id"

const keyTenantID = contextKey("xctx:tenant_id")

// WithTenantID 将 tenant ID 注入 context
//
// 不校验 value 是否为空，xctx 只负责存取。
func WithTenantID(ctx context.Context, tenantID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyTenantID, tenantID), nil
}

// TenantID 从 context 提取 tenant ID，不存在返回空字符串
func TenantID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(keyTenantID).(string); ok {
		return v
	}
	return ""
}

// RequireTenantID 从 context 提取 tenant ID，为空时返回 ErrMissingTenantID
func RequireTenantID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := TenantID(ctx)
	if v == "" {
		return "", ErrMissingTenantID
	}
	return v, nil
}
