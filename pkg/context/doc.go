// Package context 提供上下文与租户身份相关的子包。
//
// 子包列表：
//   - xctx: Context 存取租户 ID、request ID，并导出为日志属性
//   - xtenant: 从 HTTP、RPC、事件三种来源解析租户标识
//
// 所有上下文信息通过 context.Context 传递，不使用全局变量。
package context
