// Package mq 提供消息队列相关的子包。
//
// 子包列表：
//   - xkafka: Kafka 消费循环与按消息解析租户的中间件
package mq
