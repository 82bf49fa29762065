// Package xpool 管理租户到物理连接的映射。
//
// # 组件
//
//   - Provisioner : 为新租户解析 URI 与连接参数、打开连接、绑定注册表中的全部模型，
//     按需物化集合。失败时不留下任何连接。
//   - Pool        : 租户 → Connection 的进程级缓存，首次访问时创建，之后复用，
//     关闭时并发断开全部连接。
//   - Connection  : 一个租户的连接，持有已绑定的 Model。
//   - Model       : 绑定在连接上的模型；判别器模型与基础模型共用集合，按判别器值区分。
//
// # 并发
//
// 同一租户最多只有一次创建在进行：未命中时先获取该租户的 xkeylock 锁，
// 拿到锁后再次检查缓存，命中即复用，否则创建并写入缓存。不同租户完全独立。
//
// 命中时会把注册表中新增的定义绑定到连接上；开启 ForceCreateCollections 时，
// 尚未物化的集合经 singleflight 合并后统一创建，连接本身不重建。
//
// # 状态
//
//	Unknown → Provisioning → Cached → Closed（仅在 Pool.Close 时）
//
// Pool.Close 之后 Get 返回 ErrPoolClosed。
package xpool
