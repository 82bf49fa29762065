// Package xmongo 为每个租户打开独立的 MongoDB 连接。
//
// Dialer 按 URI 打开 Backend；Backend 封装一个 mongo.Client 与 URI 路径指定的数据库，
// 提供集合物化、健康检查与关闭。连接池与模型绑定不在本包，见 xpool。
//
// # 连接参数
//
// 基线参数（服务选择超时、连接超时、AppName）先应用，调用方传入的
// *options.ClientOptions 后应用并覆盖同名字段。
//
// # 集合物化
//
// CreateCollection 幂等：集合已存在（NamespaceExists，错误码 48）视为成功。
// 某些存储引擎拒绝在事务中隐式建集合，因此需要在事务前显式物化。
package xmongo
