package xtenant

import (
	"context"
	"net/http"

	"google.golang.org/grpc/metadata"
)

// Kind 入站调用形态
type Kind uint8

const (
	// KindHTTP HTTP 请求
	KindHTTP Kind = iota + 1
	// KindRPC gRPC 调用
	KindRPC
	// KindEvent 消息或 WebSocket 事件
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindRPC:
		return "rpc"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Source 入站调用的规范化视图。
//
// 各字段按 Kind 使用：
//   - KindHTTP  : Host、Header
//   - KindRPC   : Payload、Meta（incoming metadata）
//   - KindEvent : Payload、Meta（消息头，key 小写）
type Source struct {
	Kind    Kind
	Host    string
	Header  http.Header
	Meta    metadata.MD
	Payload map[string]any
}

// FromHTTPRequest 构造 HTTP Source。r 为 nil 时返回空 HTTP Source。
func FromHTTPRequest(r *http.Request) Source {
	if r == nil {
		return Source{Kind: KindHTTP}
	}
	return Source{Kind: KindHTTP, Host: r.Host, Header: r.Header}
}

// FromGRPC 构造 RPC Source，metadata 取自 ctx 的 incoming metadata。
func FromGRPC(ctx context.Context, payload map[string]any) Source {
	src := Source{Kind: KindRPC, Payload: payload}
	if ctx != nil {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			src.Meta = md
		}
	}
	return src
}

// FromPayload 构造只有 payload 的事件 Source（如 WebSocket 消息体）。
func FromPayload(payload map[string]any) Source {
	return Source{Kind: KindEvent, Payload: payload}
}

// FromEvent 构造带消息头的事件 Source。headers 的 key 按小写存储。
func FromEvent(payload map[string]any, headers map[string]string) Source {
	src := Source{Kind: KindEvent, Payload: payload}
	if len(headers) > 0 {
		src.Meta = metadata.New(headers)
	}
	return src
}
