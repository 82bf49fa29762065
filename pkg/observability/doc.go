// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动附带 context 中的租户与 request ID
//   - xmetrics: 统一的 span 接口，默认实现基于 OpenTelemetry
package observability
