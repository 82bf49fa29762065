package xtenancy

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
)

// GRPCOption gRPC 拦截器选项
type GRPCOption func(*grpcConfig)

type grpcConfig struct {
	skip map[string]struct{}
}

// WithSkipMethods 跳过指定方法（完整方法名，如 /grpc.health.v1.Health/Check）。
func WithSkipMethods(methods ...string) GRPCOption {
	return func(c *grpcConfig) {
		for _, m := range methods {
			c.skip[m] = struct{}{}
		}
	}
}

func newGRPCConfig(opts []GRPCOption) *grpcConfig {
	cfg := &grpcConfig{skip: make(map[string]struct{})}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

func (c *grpcConfig) skipped(method string) bool {
	_, ok := c.skip[method]
	return ok
}

// UnaryServerInterceptor 返回一元拦截器：按请求消息与 metadata 解析租户。
//
// 请求为 map[string]any 时直接作为载荷；为 protobuf 消息时按 proto 字段名转为载荷。
func (t *Tenancy) UnaryServerInterceptor(opts ...GRPCOption) grpc.UnaryServerInterceptor {
	cfg := newGRPCConfig(opts)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg.skipped(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := t.bindRPC(ctx, payloadOf(req))
		if err != nil {
			t.logger.Debug(ctx, "resolve tenant failed", xlog.Err(err))
			return nil, GRPCStatus(err).Err()
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor 返回流式拦截器。流建立时还没有消息，只从 metadata 解析。
func (t *Tenancy) StreamServerInterceptor(opts ...GRPCOption) grpc.StreamServerInterceptor {
	cfg := newGRPCConfig(opts)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if cfg.skipped(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := t.bindRPC(ss.Context(), nil)
		if err != nil {
			t.logger.Debug(ss.Context(), "resolve tenant failed", xlog.Err(err))
			return GRPCStatus(err).Err()
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// metaRequestID 请求 ID 的 metadata key
const metaRequestID = "x-request-id"

func (t *Tenancy) bindRPC(ctx context.Context, payload map[string]any) (context.Context, error) {
	if vals := metadata.ValueFromIncomingContext(ctx, metaRequestID); len(vals) > 0 && vals[0] != "" {
		ctx, _ = xctx.WithRequestID(ctx, vals[0])
	} else {
		ctx, _ = xctx.EnsureRequestID(ctx)
	}
	bound, _, err := t.Bind(ctx, xtenant.FromGRPC(ctx, payload))
	if err != nil {
		return ctx, err
	}
	return bound, nil
}

var payloadMarshal = protojson.MarshalOptions{UseProtoNames: true}

// payloadOf 把请求转为载荷，无法转换时返回 nil（仍可从 metadata 解析）。
func payloadOf(req any) map[string]any {
	switch v := req.(type) {
	case map[string]any:
		return v
	case proto.Message:
		raw, err := payloadMarshal.Marshal(v)
		if err != nil {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
