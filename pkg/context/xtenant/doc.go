// Package xtenant 从入站调用中提取租户标识。
//
// 入站调用统一表示为 Source，Kind 字段区分三种形态：
//   - KindHTTP  : HTTP 请求，按请求头或子域名提取
//   - KindRPC   : gRPC 调用，按 payload 字段或 metadata 提取
//   - KindEvent : 消息/WebSocket 事件，按 payload 字段或消息头提取
//
// 每种形态对应一个提取函数，由 Extract 按 Kind 分派。Extract 是纯函数，
// 不修改 Source，不访问外部资源。
//
// # 配置
//
// Config.Identifier 是请求头或 payload 字段名（大小写不敏感），
// Config.FromSubdomain 切换为子域名模式（仅 HTTP）。两者都未配置时返回 ErrMissingConfig。
//
// # 空值判定
//
// nil、空白字符串、空 map、所有 value 都为 nil 的 map 都视为缺失，返回 ErrMissingIdentifier。
//
// # 错误渲染
//
// 提取错误为 *Error，同时实现 HTTPStatus() 与 GRPCStatus()，
// HTTP 层渲染为 400，gRPC 层经 status.FromError 渲染为 InvalidArgument。
package xtenant
