package xkafka

import "errors"

var (
	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("xkafka: nil config")
	// ErrEmptyTopics 订阅的主题列表为空
	ErrEmptyTopics = errors.New("xkafka: empty topics")
	// ErrNilHandler Handler 为 nil
	ErrNilHandler = errors.New("xkafka: nil handler")
	// ErrNilMessage 消息为 nil
	ErrNilMessage = errors.New("xkafka: nil message")
	// ErrClosed 消费者已关闭
	ErrClosed = errors.New("xkafka: consumer closed")
)
