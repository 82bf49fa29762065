// Package xtenancy 把一次请求解析为该租户的数据库连接。
//
// 解析分三步：从请求载体（HTTP / gRPC / 事件）提取租户标识，
// 调用可选的 Validator 校验，再从 xpool.Pool 取得（首次时创建）租户连接。
// 连接与租户标识随后放进 context，业务代码通过 ConnectionFrom / ModelFrom 取用。
//
// # 基本用法
//
//	t, err := xtenancy.New(
//	    xtenancy.WithIdentifier("X-Tenant-Id"),
//	    xtenancy.WithURITemplate("mongodb://localhost:27017/{tenant}"),
//	)
//	_ = t.Register(catDef, dogDef)
//	mux.Handle("/cats", t.HTTPMiddleware()(catsHandler))
//	defer t.Close(ctx)
//
// # 错误映射
//
//	提取失败      400 / InvalidArgument
//	校验失败      403 / PermissionDenied
//	连接失败      503 / Unavailable（含连接池已关闭）
//	创建超时      504 / DeadlineExceeded
//
// 见 HTTPStatus 与 GRPCStatus。
package xtenancy
