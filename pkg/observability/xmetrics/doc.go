// Package xmetrics 提供统一的观测抽象。
//
// 调用方只依赖 Observer / Span，默认实现为空操作；
// NewOTelObserver 基于 OpenTelemetry 同时产出 trace 与两个指标：
//
//	xtenancy.operation.total     按 component/operation/status 计数
//	xtenancy.operation.duration  操作耗时（秒）
//
// 典型用法：
//
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//		Component: "xpool",
//		Operation: "provision",
//		Kind:      xmetrics.KindClient,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
package xmetrics
