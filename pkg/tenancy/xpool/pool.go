package xpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
	"github.com/omeyang/xtenancy/pkg/util/xkeylock"
)

const defaultCloseConcurrency = 16

// Options Pool 配置
type Options struct {
	Logger   xlog.Logger
	Observer xmetrics.Observer
	Breaker  BreakerConfig
	// CloseConcurrency 关闭时并发断开的连接数，默认 16
	CloseConcurrency int
}

// Option Pool 配置项
type Option func(*Options)

// WithLogger 设置日志，nil 忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置观测器，nil 忽略。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithBreaker 启用按租户熔断。
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *Options) { o.Breaker = cfg }
}

// WithCloseConcurrency 设置关闭并发度，非正值忽略。
func WithCloseConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CloseConcurrency = n
		}
	}
}

// Stats 连接池统计
type Stats struct {
	Connections int
	Hits        int64
	Misses      int64
	Failures    int64
}

// Pool 租户连接池，并发安全。
type Pool struct {
	prov     *Provisioner
	reg      *xschema.Registry
	logger   xlog.Logger
	observer xmetrics.Observer
	breakers *breakers
	closeN   int

	mu    sync.RWMutex
	conns map[string]*Connection

	locks  xkeylock.Locker
	sf     singleflight.Group
	closed atomic.Bool

	hits, misses, failures atomic.Int64
}

// New 创建连接池。
func New(prov *Provisioner, reg *xschema.Registry, opts ...Option) (*Pool, error) {
	if prov == nil {
		return nil, ErrNilProvisioner
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	o := &Options{CloseConcurrency: defaultCloseConcurrency}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.Observer == nil {
		o.Observer = xmetrics.NoopObserver{}
	}
	locks, err := xkeylock.New()
	if err != nil {
		return nil, err
	}
	br, err := newBreakers(o.Breaker)
	if err != nil {
		_ = locks.Close()
		return nil, fmt.Errorf("xpool: breaker cache: %w", err)
	}
	return &Pool{
		prov:     prov,
		reg:      reg,
		logger:   xlog.OrDiscard(o.Logger).With(xlog.Component(poolComponent)),
		observer: o.Observer,
		breakers: br,
		closeN:   o.CloseConcurrency,
		conns:    make(map[string]*Connection),
		locks:    locks,
	}, nil
}

// Get 返回 tenant 的连接，未缓存时创建。
//
// 同一租户并发调用只会创建一次，其余调用等待并复用结果。
// 创建失败不写入缓存，下次调用会重新尝试。
func (p *Pool) Get(ctx context.Context, tenant string) (conn *Connection, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if tenant == "" {
		return nil, ErrEmptyTenant
	}
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	ctx, span := xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: poolComponent,
		Operation: "get",
		Attrs:     []xmetrics.Attr{xmetrics.Tenant(tenant)},
	})
	hit := true
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Bool("hit", hit)}})
	}()

	if c, ok := p.lookup(tenant); ok {
		p.hits.Add(1)
		return p.refresh(ctx, c)
	}

	h, err := p.locks.Acquire(ctx, tenant)
	if err != nil {
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, ErrPoolClosed
		}
		return nil, err
	}
	defer func() { _ = h.Unlock() }()

	// 等锁期间可能已由其他调用创建
	if c, ok := p.lookup(tenant); ok {
		p.hits.Add(1)
		return p.refresh(ctx, c)
	}
	hit = false
	p.misses.Add(1)

	c, err := p.breakers.execute(tenant, func() (*Connection, error) {
		return p.prov.Provision(ctx, tenant, p.reg)
	})
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn(ctx, "tenant connection failed", xlog.Tenant(tenant), xlog.Err(err))
		return nil, err
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, ErrPoolClosed
	}
	p.conns[tenant] = c
	p.mu.Unlock()

	// 创建期间注册的定义在这里补上
	return p.refresh(ctx, c)
}

// Peek 只查缓存，不创建。
func (p *Pool) Peek(tenant string) (*Connection, bool) {
	return p.lookup(tenant)
}

func (p *Pool) lookup(tenant string) (*Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[tenant]
	return c, ok
}

// refresh 绑定新注册的定义，强制物化时补建尚未物化的集合。
// 同一租户的并发物化经 singleflight 合并，执行不受单个调用方取消影响。
// 加入的共享调用可能早于本次绑定开始，返回后仍有未物化集合时再发起一轮。
func (p *Pool) refresh(ctx context.Context, c *Connection) (*Connection, error) {
	if bound := c.sync(p.reg); len(bound) > 0 {
		p.logger.Debug(ctx, "late models bound", xlog.Tenant(c.Tenant()), xlog.Count(len(bound)))
	}
	if !p.prov.ForceCreateCollections() {
		return c, nil
	}
	for len(c.pending()) > 0 {
		ch := p.sf.DoChan(c.Tenant(), func() (any, error) {
			return nil, p.prov.Materialize(context.WithoutCancel(ctx), c)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				p.logger.Warn(ctx, "materialize on cached connection failed", xlog.Tenant(c.Tenant()), xlog.Err(res.Err))
				return nil, res.Err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c, nil
}

// Attach 把新注册的定义绑定到所有已缓存的连接，不做物化。
// 物化在下一次 Get 命中时进行。
func (p *Pool) Attach() int {
	p.mu.RLock()
	conns := make([]*Connection, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.RUnlock()

	n := 0
	for _, c := range conns {
		n += len(c.sync(p.reg))
	}
	return n
}

// Len 已缓存的连接数
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Tenants 已缓存的租户（排序）
func (p *Pool) Tenants() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.conns))
	for t := range p.conns {
		out = append(out, t)
	}
	p.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Connections: p.Len(),
		Hits:        p.hits.Load(),
		Misses:      p.misses.Load(),
		Failures:    p.failures.Load(),
	}
}

// BreakerState 返回租户熔断器状态，未启用熔断时总是 closed。
func (p *Pool) BreakerState(tenant string) gobreaker.State {
	return p.breakers.state(tenant)
}

// Closed 报告是否已关闭。
func (p *Pool) Closed() bool { return p.closed.Load() }

// Close 关闭全部连接。
//
// 尽力而为：单个连接关闭失败只记录日志，其余连接继续关闭，
// 返回值汇总全部失败仅供调用方记录。重复调用返回 ErrPoolClosed。
func (p *Pool) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	conns := p.conns
	p.conns = make(map[string]*Connection)
	p.mu.Unlock()

	// 唤醒等锁的 Get
	_ = p.locks.Close()

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(p.closeN)
	for tenant, c := range conns {
		g.Go(func() error {
			if err := c.Close(ctx); err != nil {
				p.logger.Warn(ctx, "close tenant connection failed", xlog.Tenant(tenant), xlog.Err(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("tenant %s: %w", tenant, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info(ctx, "tenant pool closed", xlog.Count(len(conns)))
	return errors.Join(errs...)
}
