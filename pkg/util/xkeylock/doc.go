// Package xkeylock 提供按 key 互斥的进程内锁。
//
// 同一 key 同时只有一个持有者，不同 key 互不影响。xpool 用它保证
// 同一租户同一时刻最多只有一次连接创建在进行。
//
// 条目按 xxhash 分片存放，持有者与等待者都释放后条目自动删除，
// 长期运行不会因 key 数量累积内存。
//
//	h, err := locker.Acquire(ctx, tenantID)
//	if err != nil {
//		return err
//	}
//	defer h.Unlock()
package xkeylock
