// Package xlog 基于 log/slog 的结构化日志。
//
// 所有方法都以 context.Context 为第一个参数，只接受 slog.Attr，
// EnrichHandler 会把 xctx 中的 tenant_id / request_id 自动追加到每条记录。
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelInfo).
//		SetFormat("json").
//		SetRotation("/var/log/xtenantd/app.log").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// 库代码接受 Logger 参数，未传入时使用 Discard()。
package xlog
