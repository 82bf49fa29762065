// Package xmongotest 提供内存版 xmongo.Dialer / xmongo.Backend，用于不依赖 MongoDB 的测试。
package xmongotest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
)

// Dialer 每次 Dial 都返回新的 Backend，并记录调用次数。
type Dialer struct {
	mu        sync.Mutex
	backends  []*Backend
	perURI    map[string]int
	dialErr   error
	createErr error
	closeErr  error
	delay     time.Duration
	gate      chan struct{}
	create    *createHold
	dials     atomic.Int64
}

type createHold struct {
	gate    chan struct{}
	entered chan string
}

// NewDialer 创建 Dialer。
func NewDialer() *Dialer {
	return &Dialer{perURI: make(map[string]int)}
}

// Fail 之后的 Dial 返回 err，nil 恢复正常。
func (d *Dialer) Fail(err error) {
	d.mu.Lock()
	d.dialErr = err
	d.mu.Unlock()
}

// FailCreate 之后打开的 Backend 在 CreateCollection 时返回 err。
func (d *Dialer) FailCreate(err error) {
	d.mu.Lock()
	d.createErr = err
	d.mu.Unlock()
}

// FailClose 之后打开的 Backend 在 Close 时返回 err。
func (d *Dialer) FailClose(err error) {
	d.mu.Lock()
	d.closeErr = err
	d.mu.Unlock()
}

// Delay 每次 Dial 前等待 delay，期间响应 ctx 取消。
func (d *Dialer) Delay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Hold 让后续 Dial 阻塞，直到返回的函数被调用或 ctx 取消。
func (d *Dialer) Hold() (release func()) {
	gate := make(chan struct{})
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gate == gate {
				d.gate = nil
			}
			d.mu.Unlock()
			close(gate)
		})
	}
}

// HoldCreate 让 CreateCollection 阻塞，直到返回的 release 被调用或 ctx 取消。
// entered 依次收到进入阻塞的集合名（缓冲满时丢弃）。
func (d *Dialer) HoldCreate() (entered <-chan string, release func()) {
	h := &createHold{gate: make(chan struct{}), entered: make(chan string, 64)}
	d.mu.Lock()
	d.create = h
	d.mu.Unlock()
	var once sync.Once
	return h.entered, func() {
		once.Do(func() {
			d.mu.Lock()
			if d.create == h {
				d.create = nil
			}
			d.mu.Unlock()
			close(h.gate)
		})
	}
}

func (d *Dialer) createHold() *createHold {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.create
}

// Dial 实现 xmongo.Dialer。
func (d *Dialer) Dial(ctx context.Context, uri string, _ *options.ClientOptions) (xmongo.Backend, error) {
	d.dials.Add(1)
	name, err := xmongo.DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.perURI[uri]++
	dialErr, createErr, closeErr := d.dialErr, d.createErr, d.closeErr
	delay, gate := d.delay, d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if dialErr != nil {
		return nil, dialErr
	}

	b := &Backend{
		name:      name,
		URI:       uri,
		created:   make(map[string]int),
		createErr: createErr,
		closeErr:  closeErr,
		owner:     d,
	}
	d.mu.Lock()
	d.backends = append(d.backends, b)
	d.mu.Unlock()
	return b, nil
}

// Dials 返回 Dial 调用总次数（含失败）。
func (d *Dialer) Dials() int { return int(d.dials.Load()) }

// DialsFor 返回指定 URI 的 Dial 次数。
func (d *Dialer) DialsFor(uri string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perURI[uri]
}

// Backends 按打开顺序返回成功打开的 Backend。
func (d *Dialer) Backends() []*Backend {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.backends)
}

// Backend 记录物化集合与关闭状态的内存 Backend。
type Backend struct {
	name string
	URI  string

	mu        sync.Mutex
	created   map[string]int
	createErr error
	closeErr  error
	closed    atomic.Bool
	closes    atomic.Int64
	owner     *Dialer
}

func (b *Backend) createHold() *createHold {
	if b.owner == nil {
		return nil
	}
	return b.owner.createHold()
}

func (b *Backend) Name() string { return b.name }

// Database 返回 nil，内存实现没有真实数据库句柄。
func (b *Backend) Database() *mongo.Database { return nil }

func (b *Backend) CreateCollection(ctx context.Context, name string, _ bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.closed.Load() {
		return xmongo.ErrClosed
	}
	if h := b.createHold(); h != nil {
		select {
		case h.entered <- name:
		default:
		}
		select {
		case <-h.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return b.createErr
	}
	b.created[name]++
	return nil
}

func (b *Backend) Health(context.Context) error {
	if b.closed.Load() {
		return xmongo.ErrClosed
	}
	return nil
}

func (b *Backend) Stats() xmongo.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, c := range b.created {
		n += int64(c)
	}
	return xmongo.Stats{CollectionsCreated: n}
}

func (b *Backend) Close(context.Context) error {
	b.closes.Add(1)
	if !b.closed.CompareAndSwap(false, true) {
		return xmongo.ErrClosed
	}
	return b.closeErr
}

// Collections 返回已物化的集合名（排序）。
func (b *Backend) Collections() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.created))
	for n := range b.created {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// CreateCalls 返回某集合的 CreateCollection 调用次数。
func (b *Backend) CreateCalls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created[name]
}

// Closed 报告是否已关闭。
func (b *Backend) Closed() bool { return b.closed.Load() }

// CloseCalls 返回 Close 调用次数。
func (b *Backend) CloseCalls() int { return int(b.closes.Load()) }
