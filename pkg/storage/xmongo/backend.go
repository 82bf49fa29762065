package xmongo

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
)

const mongoComponent = "xmongo"

// Backend 单个租户的物理连接。
type Backend interface {
	// Name 数据库名
	Name() string
	// Database 底层数据库句柄，测试替身可返回 nil
	Database() *mongo.Database
	// CreateCollection 物化集合，集合已存在视为成功。validator 为空时不设置校验器。
	CreateCollection(ctx context.Context, name string, validator bson.M) error
	// Health Ping 主节点
	Health(ctx context.Context) error
	// Stats 统计信息
	Stats() Stats
	// Close 断开连接。重复调用返回 ErrClosed，nil ctx 视为 Background。
	Close(ctx context.Context) error
}

// Stats Backend 统计信息
type Stats struct {
	PingCount          int64
	PingErrors         int64
	CollectionsCreated int64
	// SessionsInProgress 活跃会话数，driver 不暴露连接池细节，以此近似
	SessionsInProgress int
}

// clientOperations mongo.Client 中 Backend 用到的方法，便于注入替身。
type clientOperations interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
	NumberSessionsInProgress() int
}

// databaseOperations mongo.Database 中 Backend 用到的方法。
type databaseOperations interface {
	CreateCollection(ctx context.Context, name string, opts ...options.Lister[options.CreateCollectionOptions]) error
}

type mongoBackend struct {
	name    string
	db      *mongo.Database
	client  clientOperations
	dbOps   databaseOperations
	options *Options

	pingCount  atomic.Int64
	pingErrors atomic.Int64
	created    atomic.Int64
	closed     atomic.Bool
}

// NewBackend 用已连接的 client 构造 Backend，name 为空时使用 DefaultDatabase。
func NewBackend(client *mongo.Client, name string, opts ...Option) (Backend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if name == "" {
		name = DefaultDatabase
	}
	db := client.Database(name)
	return &mongoBackend{name: name, db: db, client: client, dbOps: db, options: o}, nil
}

func (b *mongoBackend) Name() string { return b.name }

func (b *mongoBackend) Database() *mongo.Database { return b.db }

func (b *mongoBackend) CreateCollection(ctx context.Context, name string, validator bson.M) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCollection
	}
	if b.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, b.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: "create_collection",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mongodb"),
			xmetrics.String("db.name", b.name),
			xmetrics.String("db.collection", name),
		},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	opts := options.CreateCollection()
	if len(validator) > 0 {
		opts.SetValidator(validator)
	}
	if err = b.dbOps.CreateCollection(ctx, name, opts); err != nil {
		if IsNamespaceExists(err) {
			return nil
		}
		return fmt.Errorf("xmongo create collection %s.%s: %w", b.name, name, err)
	}
	b.created.Add(1)
	return nil
}

func (b *mongoBackend) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if b.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, b.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.name", b.name)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	b.pingCount.Add(1)
	ctx, cancel := withTimeout(ctx, b.options.HealthTimeout)
	defer cancel()
	if err = b.client.Ping(ctx, readpref.Primary()); err != nil {
		b.pingErrors.Add(1)
		return fmt.Errorf("xmongo health: %w", err)
	}
	return nil
}

func (b *mongoBackend) Stats() Stats {
	return Stats{
		PingCount:          b.pingCount.Load(),
		PingErrors:         b.pingErrors.Load(),
		CollectionsCreated: b.created.Load(),
		SessionsInProgress: b.client.NumberSessionsInProgress(),
	}
}

// Close Disconnect 失败时不回滚关闭状态。
func (b *mongoBackend) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := b.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("xmongo close %s: %w", b.name, err)
	}
	return nil
}

// withTimeout ctx 已有更早的截止时间时保持不变。
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
