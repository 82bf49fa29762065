// Package tenancy 提供多租户 MongoDB 连接管理相关的子包。
//
// 子包列表：
//   - xschema: 模型定义注册表（先注册者生效，只增不减）
//   - xpool: 按租户缓存连接，首次访问时创建，并发请求只创建一次
//   - xtenancy: 对外入口，组合租户解析、校验与连接池，提供 HTTP/gRPC 中间件
//   - xallow: 租户白名单校验器（静态列表、Redis 集合）
package tenancy
