package xkeylock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Handle 一次成功的加锁。
type Handle interface {
	// Unlock 释放锁，第二次起返回 ErrLockNotHeld。
	Unlock() error
	// Key 返回加锁的 key。
	Key() string
}

// Locker 按 key 互斥的锁，方法并发安全。锁不可重入。
type Locker interface {
	io.Closer
	// Acquire 阻塞直到获得锁、ctx 结束或 Locker 关闭。
	Acquire(ctx context.Context, key string) (Handle, error)
	// TryAcquire 不阻塞，占用时返回 ErrLockOccupied。
	TryAcquire(key string) (Handle, error)
	// Len 活跃 key 数（持有或等待中）
	Len() int
	// Keys 活跃 key 快照，仅用于调试
	Keys() []string
}

// New 创建 Locker。
func New(opts ...Option) (Locker, error) {
	o := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	l := &locker{
		shards:  make([]shard, o.shardCount),
		mask:    uint64(o.shardCount - 1),
		maxKeys: int64(o.maxKeys),
		done:    make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}
	return l, nil
}

type locker struct {
	shards  []shard
	mask    uint64
	maxKeys int64
	keys    atomic.Int64
	closed  atomic.Bool
	done    chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 容量为 1 的 channel 充当互斥量：写入即加锁，读出即解锁。
// refs 统计持有者与等待者，受所在 shard 的 mu 保护。
type entry struct {
	sem  chan struct{}
	refs int
}

func (l *locker) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)&l.mask]
}

func (l *locker) ref(key string) (*entry, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		if l.maxKeys > 0 && l.keys.Load() >= l.maxKeys {
			return nil, ErrMaxKeysExceeded
		}
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
		l.keys.Add(1)
	}
	e.refs++
	return e, nil
}

func (l *locker) unref(key string, e *entry) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
		l.keys.Add(-1)
	}
}

func (l *locker) Acquire(ctx context.Context, key string) (Handle, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.sem <- struct{}{}:
		return &handle{l: l, key: key, e: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.unref(key, e)
		return nil, ErrClosed
	}
}

func (l *locker) TryAcquire(key string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.sem <- struct{}{}:
		return &handle{l: l, key: key, e: e}, nil
	default:
		l.unref(key, e)
		return nil, ErrLockOccupied
	}
}

func (l *locker) Len() int {
	return int(max(l.keys.Load(), 0))
}

func (l *locker) Keys() []string {
	keys := make([]string, 0, l.Len())
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.Unlock()
	}
	return keys
}

// Close 唤醒所有等待者并拒绝新的加锁，已持有的 Handle 仍可 Unlock。
func (l *locker) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

type handle struct {
	l        *locker
	key      string
	e        *entry
	released atomic.Bool
}

func (h *handle) Unlock() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.e.sem
	h.l.unref(h.key, h.e)
	return nil
}

func (h *handle) Key() string { return h.key }
