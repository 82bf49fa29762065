// Package xctx 提供请求级 context 存取。
//
// 只承载租户解析链路需要的两个字段：
//   - tenant_id  : 当前调用解析出的租户标识
//   - request_id : 请求标识，缺失时由 EnsureRequestID 生成
//
// # 命名约定
//
//	WithXxx(ctx, value)  - 注入
//	Xxx(ctx)             - 读取，缺失时返回零值
//	RequireXxx(ctx)      - 读取，缺失时返回错误
//	EnsureXxx(ctx)       - 已存在则复用，否则生成
//
// 所有 WithXxx 在 ctx 为 nil 时返回 ErrNilContext，不 panic。
package xctx
