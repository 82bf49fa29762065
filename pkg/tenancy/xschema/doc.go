// Package xschema 维护进程级的模型定义注册表。
//
// 注册表在所有租户之间共享，只追加不删除：同名模型首次注册生效，
// 之后的同名注册静默忽略（Register 返回 added=false）。
// All 按注册顺序返回定义，连接绑定模型时依赖这个顺序。
//
// 判别器（Discriminator）作为所属 ModelDefinition 的一部分保存，
// 不在注册表中占独立条目。
package xschema
