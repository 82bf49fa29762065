package xpool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
)

const (
	poolComponent = "xpool"

	// DefaultProvisionTimeout URI / 参数解析与打开连接的总超时
	DefaultProvisionTimeout = 30 * time.Second

	defaultMaterializeConcurrency = 8
)

// URIFunc 按租户返回连接 URI，可以阻塞（例如查询配置中心）。
type URIFunc func(ctx context.Context, tenantID string) (string, error)

// ClientOptionsFunc 返回连接参数，可以阻塞。返回 nil 表示只用基线参数。
type ClientOptionsFunc func(ctx context.Context) (*options.ClientOptions, error)

// ProvisionerConfig Provisioner 配置
type ProvisionerConfig struct {
	Dialer        xmongo.Dialer
	URI           URIFunc
	ClientOptions ClientOptionsFunc
	// ForceCreateCollections 返回连接前物化全部集合
	ForceCreateCollections bool
	// Timeout 解析与打开连接的超时，物化单独计时，默认 30s
	Timeout time.Duration
	// MaterializeConcurrency 并发创建集合数，默认 8
	MaterializeConcurrency int
	Logger                 xlog.Logger
	Observer               xmetrics.Observer
}

type collectionSpec struct {
	name      string
	validator bson.M
}

// Provisioner 为租户创建连接。
type Provisioner struct {
	dialer      xmongo.Dialer
	uri         URIFunc
	clientOpts  ClientOptionsFunc
	force       bool
	timeout     time.Duration
	concurrency int
	logger      xlog.Logger
	observer    xmetrics.Observer
}

// NewProvisioner 校验配置并创建 Provisioner。
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if cfg.Dialer == nil {
		return nil, ErrNilDialer
	}
	if cfg.URI == nil {
		return nil, ErrNilURIFunc
	}
	p := &Provisioner{
		dialer:      cfg.Dialer,
		uri:         cfg.URI,
		clientOpts:  cfg.ClientOptions,
		force:       cfg.ForceCreateCollections,
		timeout:     cfg.Timeout,
		concurrency: cfg.MaterializeConcurrency,
		logger:      xlog.OrDiscard(cfg.Logger).With(xlog.Component(poolComponent)),
		observer:    cfg.Observer,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultProvisionTimeout
	}
	if p.concurrency <= 0 {
		p.concurrency = defaultMaterializeConcurrency
	}
	if p.observer == nil {
		p.observer = xmetrics.NoopObserver{}
	}
	return p, nil
}

// ForceCreateCollections 报告是否强制物化集合。
func (p *Provisioner) ForceCreateCollections() bool { return p.force }

// Provision 为 tenant 打开连接并绑定 reg 中的全部定义。
//
// 任一步失败都返回包装了 ErrConnection 的错误，已打开的连接会被关闭。
func (p *Provisioner) Provision(ctx context.Context, tenant string, reg *xschema.Registry) (conn *Connection, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if tenant == "" {
		return nil, ErrEmptyTenant
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}

	ctx, span := xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: poolComponent,
		Operation: "provision",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.Tenant(tenant)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	start := time.Now()

	backend, err := p.open(ctx, tenant)
	if err != nil {
		return nil, err
	}

	conn = newConnection(tenant, backend)
	bound := conn.sync(reg)

	if p.force {
		if err = p.Materialize(ctx, conn); err != nil {
			_ = backend.Close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("%w: tenant %s: %w", ErrConnection, tenant, err)
		}
	}

	p.logger.Info(ctx, "tenant connection provisioned",
		xlog.Tenant(tenant),
		slog.String("database", backend.Name()),
		xlog.Count(len(bound)),
		xlog.Duration(time.Since(start)))
	return conn, nil
}

// open 在超时内解析 URI 与参数并打开连接。
func (p *Provisioner) open(ctx context.Context, tenant string) (xmongo.Backend, error) {
	bounded, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	uri, err := p.uri(bounded, tenant)
	if err != nil {
		return nil, connectionError(ctx, bounded, tenant, "resolve uri", err)
	}
	if uri == "" {
		return nil, connectionError(ctx, bounded, tenant, "resolve uri", xmongo.ErrEmptyURI)
	}

	var opts *options.ClientOptions
	if p.clientOpts != nil {
		if opts, err = p.clientOpts(bounded); err != nil {
			return nil, connectionError(ctx, bounded, tenant, "resolve options", err)
		}
	}

	backend, err := p.dialer.Dial(bounded, uri, opts)
	if err != nil {
		return nil, connectionError(ctx, bounded, tenant, "dial", err)
	}
	return backend, nil
}

// Materialize 创建连接上尚未物化的集合，集合已存在视为成功。
// 失败时已成功的集合保持已物化状态，下次只重试剩余部分。
func (p *Provisioner) Materialize(ctx context.Context, conn *Connection) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	specs := conn.pending()
	if len(specs) == 0 {
		return nil
	}

	ctx, span := xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: poolComponent,
		Operation: "materialize",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.Tenant(conn.Tenant()),
			xmetrics.Int("collections", len(specs)),
		},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, spec := range specs {
		g.Go(func() error {
			if err := conn.backend.CreateCollection(gctx, spec.name, spec.validator); err != nil {
				return fmt.Errorf("%s: %w", spec.name, err)
			}
			conn.markMaterialized(spec.name)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrMaterialize, err)
	}
	p.logger.Debug(ctx, "collections materialized", xlog.Tenant(conn.Tenant()), xlog.Count(len(specs)))
	return nil
}
