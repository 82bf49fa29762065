// Package xrun 管理进程内服务的启动与优雅退出。
//
// Group 基于 errgroup：任一服务返回错误或收到退出信号时取消共享 ctx，
// 其余服务据此退出。HTTPServer / GRPCServer 把服务器包装成服务函数，
// Closer 在 ctx 取消后以独立超时执行收尾（例如关闭全部租户连接）。
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Service{Name: "http", Run: xrun.HTTPServer(srv, 10*time.Second)},
//	    xrun.Service{Name: "tenancy", Run: xrun.Closer(tn.Close, 30*time.Second)},
//	)
//
// 收到信号时 Run 返回 *SignalError，errors.Is(err, ErrSignal) 为真。
package xrun
