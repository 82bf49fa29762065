// Package xallow 提供租户白名单校验器，实现 xtenancy.Validator。
//
//   - Static : 进程内白名单，可在配置热更新时整体替换。
//   - Redis  : 白名单存放在 Redis Set 中，多实例共享。
//
// 不在名单内返回 ErrNotAllowed。Redis 不可用时返回底层错误，请求被拒绝（fail closed）。
package xallow
