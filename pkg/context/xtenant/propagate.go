package xtenant

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
)

// InjectToRequest 将 ctx 中的 tenant ID 写入出站 HTTP 请求头。
// tenant ID 为空或 header 为空时不做任何修改。
func InjectToRequest(ctx context.Context, req *http.Request, header string) {
	if req == nil || header == "" {
		return
	}
	if id := xctx.TenantID(ctx); id != "" {
		req.Header.Set(header, id)
	}
}

// InjectToOutgoingContext 将 ctx 中的 tenant ID 追加到 outgoing metadata。
func InjectToOutgoingContext(ctx context.Context, key string) context.Context {
	if ctx == nil || key == "" {
		return ctx
	}
	id := xctx.TenantID(ctx)
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, key, id)
}

// GRPCUnaryClientInterceptor 在每次出站调用时透传 tenant ID。
func GRPCUnaryClientInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(InjectToOutgoingContext(ctx, key), method, req, reply, cc, opts...)
	}
}

// GRPCStreamClientInterceptor 流式版本的 GRPCUnaryClientInterceptor。
func GRPCStreamClientInterceptor(key string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(InjectToOutgoingContext(ctx, key), desc, cc, method, opts...)
	}
}
