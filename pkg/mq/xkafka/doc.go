// Package xkafka 消费 Kafka 消息并按消息解析租户连接。
//
// 基于 confluent-kafka-go：NewConsumer 创建订阅指定主题的消费者，
// Run 循环读取消息并交给 Handler。Middleware 在 Handler 之前从消息体
// （JSON 对象）或消息头提取租户标识，把租户连接放进 context。
//
// # Offset 提交模型
//
// 强制 enable.auto.offset.store=false，Handler 返回后才 StoreMessage，
// 由 auto-commit 定期提交。Handler 失败只计数与记录日志，offset 同样存储，
// 避免一条无法解析租户的消息阻塞整个分区。
package xkafka
