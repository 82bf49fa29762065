package xkafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
)

// Binder 解析租户并把连接放进 context，由 *xtenancy.Tenancy 实现。
type Binder interface {
	Bind(ctx context.Context, src xtenant.Source) (context.Context, *xpool.Connection, error)
}

// ErrorFunc 处理租户解析失败的消息，返回值作为 Handler 的结果。
type ErrorFunc func(ctx context.Context, msg *kafka.Message, err error) error

// Source 把消息转为事件 Source：消息体为 JSON 对象时作为载荷，消息头作为元数据。
func Source(msg *kafka.Message) xtenant.Source {
	if msg == nil {
		return xtenant.FromPayload(nil)
	}
	var payload map[string]any
	if len(msg.Value) > 0 {
		// 非 JSON 对象的消息体只能从消息头解析
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			payload = nil
		}
	}
	var headers map[string]string
	if len(msg.Headers) > 0 {
		headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[strings.ToLower(h.Key)] = string(h.Value)
		}
	}
	return xtenant.FromEvent(payload, headers)
}

// Middleware 在 next 之前解析消息的租户。
// 解析失败时调用 onError；onError 为 nil 时直接返回错误，不调用 next。
func Middleware(b Binder, next Handler, onError ErrorFunc) Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		if msg == nil {
			return ErrNilMessage
		}
		bound, _, err := b.Bind(ctx, Source(msg))
		if err != nil {
			if onError != nil {
				return onError(ctx, msg, err)
			}
			return err
		}
		return next(bound, msg)
	}
}

// InjectTenant 把 ctx 中的租户标识写入消息头 key，已有同名头会被覆盖。
func InjectTenant(ctx context.Context, msg *kafka.Message, key string) {
	if msg == nil || key == "" {
		return
	}
	tid := xctx.TenantID(ctx)
	if tid == "" {
		return
	}
	headers := msg.Headers[:0]
	for _, h := range msg.Headers {
		if !strings.EqualFold(h.Key, key) {
			headers = append(headers, h)
		}
	}
	msg.Headers = append(headers, kafka.Header{Key: key, Value: []byte(tid)})
}
