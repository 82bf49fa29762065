package xkafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
)

// Handler 处理一条消息。
type Handler func(ctx context.Context, msg *kafka.Message) error

// Consumer Kafka 消费者。
type Consumer interface {
	// Consumer 返回底层的 *kafka.Consumer。
	Consumer() *kafka.Consumer
	// Run 循环消费直到 ctx 结束，返回 ctx.Err()。
	Run(ctx context.Context, handler Handler) error
	// Stats 返回统计信息。
	Stats() ConsumerStats
	// Close 提交已存储的 offset 并关闭。
	Close() error
}

// ConsumerStats 消费者统计
type ConsumerStats struct {
	MessagesConsumed int64
	HandlerErrors    int64
	ReadErrors       int64
}

// messageReader 是 *kafka.Consumer 中 Run 用到的部分。
type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
}

type consumer struct {
	raw    *kafka.Consumer
	reader messageReader
	opts   *consumerOptions

	closeMu sync.Mutex
	closed  atomic.Bool

	consumed    atomic.Int64
	handlerErrs atomic.Int64
	readErrs    atomic.Int64
}

// NewConsumer 创建订阅 topics 的消费者。
// config 必须包含 bootstrap.servers 与 group.id，不会被修改。
func NewConsumer(config *kafka.ConfigMap, topics []string, opts ...ConsumerOption) (Consumer, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if len(topics) == 0 {
		return nil, ErrEmptyTopics
	}
	o := defaultConsumerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	cloned := &kafka.ConfigMap{}
	for k, v := range *config {
		if err := cloned.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("clone config key %q: %w", k, err)
		}
	}
	if err := cloned.SetKey("enable.auto.offset.store", false); err != nil {
		return nil, fmt.Errorf("set enable.auto.offset.store: %w", err)
	}

	c, err := kafka.NewConsumer(cloned)
	if err != nil {
		return nil, err
	}
	if err := c.SubscribeTopics(topics, nil); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return newConsumer(c, c, o), nil
}

func newConsumer(raw *kafka.Consumer, reader messageReader, o *consumerOptions) *consumer {
	return &consumer{
		raw:    raw,
		reader: reader,
		opts:   o,
	}
}

func (c *consumer) Consumer() *kafka.Consumer { return c.raw }

func (c *consumer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	logger := c.opts.Logger.With(xlog.Component(componentName))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.closed.Load() {
			return ErrClosed
		}

		msg, err := c.reader.ReadMessage(c.opts.PollTimeout)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			c.readErrs.Add(1)
			logger.Warn(ctx, "kafka read failed", xlog.Err(err))
			if !sleep(ctx, c.opts.ErrorBackoff) {
				return ctx.Err()
			}
			continue
		}

		c.handle(ctx, logger, msg, handler)
		if _, err := c.reader.StoreMessage(msg); err != nil {
			logger.Warn(ctx, "kafka store offset failed", xlog.Err(err))
		}
	}
}

func (c *consumer) handle(ctx context.Context, logger xlog.Logger, msg *kafka.Message, handler Handler) {
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	ctx, span := xmetrics.Start(ctx, c.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "consume",
		Kind:      xmetrics.KindConsumer,
		Attrs: []xmetrics.Attr{
			xmetrics.String("messaging.destination", topic),
			xmetrics.Int("messaging.kafka.partition", int(msg.TopicPartition.Partition)),
		},
	})
	err := handler(ctx, msg)
	span.End(xmetrics.Result{Err: err})

	c.consumed.Add(1)
	if err != nil {
		c.handlerErrs.Add(1)
		logger.Warn(ctx, "kafka handler failed", xlog.Err(err),
			slog.String("topic", topic), slog.Int64("offset", int64(msg.TopicPartition.Offset)))
	}
}

func (c *consumer) Stats() ConsumerStats {
	return ConsumerStats{
		MessagesConsumed: c.consumed.Load(),
		HandlerErrors:    c.handlerErrs.Load(),
		ReadErrors:       c.readErrs.Load(),
	}
}

func (c *consumer) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func isTimeout(err error) bool {
	var kerr kafka.Error
	return errors.As(err, &kerr) && kerr.IsTimeout()
}

// sleep 等待 d，ctx 先结束时返回 false。
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
