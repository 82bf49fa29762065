package xkeylock

import "errors"

var (
	// ErrNilContext Acquire 传入 nil ctx
	ErrNilContext = errors.New("xkeylock: nil context")
	// ErrInvalidKey key 为空
	ErrInvalidKey = errors.New("xkeylock: empty key")
	// ErrClosed Locker 已关闭
	ErrClosed = errors.New("xkeylock: closed")
	// ErrLockOccupied TryAcquire 时锁被占用
	ErrLockOccupied = errors.New("xkeylock: lock occupied")
	// ErrLockNotHeld Unlock 重复调用
	ErrLockNotHeld = errors.New("xkeylock: lock not held")
	// ErrMaxKeysExceeded 活跃 key 数达到上限
	ErrMaxKeysExceeded = errors.New("xkeylock: max keys exceeded")
	// ErrInvalidShardCount 分片数不是 2 的幂
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
