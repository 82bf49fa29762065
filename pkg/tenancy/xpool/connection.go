package xpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
)

// Connection 一个租户的连接。
type Connection struct {
	id        string
	tenant    string
	backend   xmongo.Backend
	createdAt time.Time

	mu     sync.RWMutex
	models map[string]*Model
	order  []string
	// synced 已同步的注册表定义数
	synced int
	// materialized 已物化的集合
	materialized map[string]struct{}

	closed atomic.Bool
}

func newConnection(tenant string, backend xmongo.Backend) *Connection {
	return &Connection{
		id:           uuid.NewString(),
		tenant:       tenant,
		backend:      backend,
		createdAt:    time.Now(),
		models:       make(map[string]*Model),
		materialized: make(map[string]struct{}),
	}
}

// ID 连接实例标识，同一租户重建后会变化。
func (c *Connection) ID() string { return c.id }

func (c *Connection) Tenant() string { return c.tenant }

func (c *Connection) Backend() xmongo.Backend { return c.backend }

func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Model 返回已绑定的模型。
func (c *Connection) Model(name string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	return m, ok
}

// Models 按绑定顺序返回全部模型。
func (c *Connection) Models() []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Model, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name])
	}
	return out
}

// Materialized 报告集合是否已物化。
func (c *Connection) Materialized(collection string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.materialized[collection]
	return ok
}

func (c *Connection) Closed() bool { return c.closed.Load() }

// Close 断开连接，重复调用返回 ErrConnectionClosed。
func (c *Connection) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrConnectionClosed
	}
	return c.backend.Close(ctx)
}

// sync 绑定注册表中尚未同步的定义，返回新绑定的模型。
func (c *Connection) sync(reg *xschema.Registry) []*Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	defs := reg.Since(c.synced)
	c.synced += len(defs)
	var bound []*Model
	for _, def := range defs {
		bound = c.bindLocked(def, bound)
	}
	return bound
}

// bindLocked 绑定基础模型与其判别器，已存在的名称跳过。
func (c *Connection) bindLocked(def xschema.ModelDefinition, bound []*Model) []*Model {
	coll := def.CollectionName()
	if _, ok := c.models[def.Name]; !ok {
		m := &Model{
			name:       def.Name,
			collection: coll,
			key:        def.Schema.Key(),
			validator:  def.Schema.Validator,
			conn:       c,
		}
		c.addLocked(m)
		bound = append(bound, m)
	}
	for _, d := range def.Discriminators {
		if _, ok := c.models[d.Name]; ok {
			continue
		}
		m := &Model{
			name:       d.Name,
			collection: coll,
			base:       def.Name,
			key:        def.Schema.Key(),
			value:      d.TagValue(),
			validator:  def.Schema.Validator,
			conn:       c,
		}
		c.addLocked(m)
		bound = append(bound, m)
	}
	return bound
}

func (c *Connection) addLocked(m *Model) {
	c.models[m.name] = m
	c.order = append(c.order, m.name)
}

// pending 返回尚未物化的集合及其校验器，按绑定顺序去重。
func (c *Connection) pending() []collectionSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []collectionSpec
	for _, name := range c.order {
		m := c.models[name]
		if _, done := c.materialized[m.collection]; done {
			continue
		}
		if _, dup := seen[m.collection]; dup {
			continue
		}
		seen[m.collection] = struct{}{}
		out = append(out, collectionSpec{name: m.collection, validator: m.validator})
	}
	return out
}

func (c *Connection) markMaterialized(collection string) {
	c.mu.Lock()
	c.materialized[collection] = struct{}{}
	c.mu.Unlock()
}
