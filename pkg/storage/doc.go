// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xmongo: MongoDB 连接封装，按 URI 打开连接、创建集合、健康检查
//   - xmongo/xmongotest: 不依赖数据库的 Dialer/Backend 实现，用于单元测试
package storage
