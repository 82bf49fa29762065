// Package xconf 加载 YAML / JSON 配置文件，基于 koanf。
//
// New 从文件加载，NewFromBytes 从字节加载（如 K8s ConfigMap 挂载内容）。
// Unmarshal 按 koanf 标签把某个路径解到结构体。Reload 原子替换整份配置，
// 解析失败时保留旧配置。
//
// WithExpandEnv 在解析前展开 ${VAR}，用于把连接串中的口令放在环境变量里。
//
// # 热更新
//
// Watch 监视配置文件所在目录（编辑器常以 rename 方式保存），
// 防抖后 Reload 并回调，阻塞直到 ctx 结束，适合放进 xrun.Group。
package xconf
