package xtenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
)

const component = "xtenancy"

// Tenancy 租户解析器，并发安全。
type Tenancy struct {
	extract  xtenant.Config
	reg      *xschema.Registry
	pool     *xpool.Pool
	validate Validator
	cache    *validationCache
	logger   xlog.Logger
	observer xmetrics.Observer
}

// New 创建 Tenancy。未配置 URI 时返回 ErrMissingURI。
//
// 未配置标识来源不会报错，每次解析会返回 xtenant.ErrMissingConfig。
func New(opts ...Option) (*Tenancy, error) {
	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.uri == nil {
		return nil, ErrMissingURI
	}
	if s.registry == nil {
		s.registry = xschema.NewRegistry()
	}
	if s.observer == nil {
		s.observer = xmetrics.NoopObserver{}
	}
	logger := xlog.OrDiscard(s.logger)
	if s.dialer == nil {
		s.dialer = xmongo.NewDialer(xmongo.WithObserver(s.observer))
	}

	prov, err := xpool.NewProvisioner(xpool.ProvisionerConfig{
		Dialer:                 s.dialer,
		URI:                    s.uri,
		ClientOptions:          s.clientOptions,
		ForceCreateCollections: s.force,
		Timeout:                s.timeout,
		Logger:                 logger,
		Observer:               s.observer,
	})
	if err != nil {
		return nil, err
	}
	pool, err := xpool.New(prov, s.registry,
		xpool.WithLogger(logger),
		xpool.WithObserver(s.observer),
		xpool.WithBreaker(s.breaker),
	)
	if err != nil {
		return nil, err
	}
	cache, err := newValidationCache(s.cacheTTL, s.cacheSize)
	if err != nil {
		_ = pool.Close(context.Background())
		return nil, err
	}

	cfg := xtenant.Config{Identifier: s.identifier, FromSubdomain: s.subdomain}
	if !cfg.Configured() {
		logger.Warn(context.Background(), "tenant identifier source not configured",
			xlog.Component(component))
	}
	return &Tenancy{
		extract:  cfg,
		reg:      s.registry,
		pool:     pool,
		validate: s.validator,
		cache:    cache,
		logger:   logger.With(xlog.Component(component)),
		observer: s.observer,
	}, nil
}

// Extractor 返回标识提取配置。
func (t *Tenancy) Extractor() xtenant.Config { return t.extract }

// Registry 返回模型注册表。
func (t *Tenancy) Registry() *xschema.Registry { return t.reg }

// Pool 返回连接池。
func (t *Tenancy) Pool() *xpool.Pool { return t.pool }

// Register 注册模型定义，已注册的名称忽略。
//
// 可在任意时刻调用：新定义会立即绑定到已缓存的连接，
// 开启强制物化时在该租户下一次解析时物化。
func (t *Tenancy) Register(defs ...xschema.ModelDefinition) error {
	var errs []error
	added := 0
	for _, def := range defs {
		ok, err := t.reg.Register(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			added++
		}
	}
	if added > 0 {
		t.pool.Attach()
	}
	return errors.Join(errs...)
}

// Resolve 从 src 提取租户标识并返回其连接。
func (t *Tenancy) Resolve(ctx context.Context, src xtenant.Source) (*xpool.Connection, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	id, err := xtenant.Extract(src, t.extract)
	if err != nil {
		return nil, err
	}
	return t.ResolveID(ctx, id)
}

// ResolveID 校验 tenantID 并返回其连接。
func (t *Tenancy) ResolveID(ctx context.Context, tenantID string) (conn *xpool.Connection, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := xmetrics.Start(ctx, t.observer, xmetrics.SpanOptions{
		Component: component,
		Operation: "resolve",
		Attrs:     []xmetrics.Attr{xmetrics.Tenant(tenantID)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if err = xtenant.CheckID(tenantID); err != nil {
		return nil, err
	}
	if err = t.check(ctx, tenantID); err != nil {
		return nil, err
	}
	return t.pool.Get(ctx, tenantID)
}

// Bind 解析 src 并把租户标识与连接放进 context。
func (t *Tenancy) Bind(ctx context.Context, src xtenant.Source) (context.Context, *xpool.Connection, error) {
	conn, err := t.Resolve(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	ctx, err = xctx.WithTenantID(ctx, conn.Tenant())
	if err != nil {
		return nil, nil, err
	}
	return WithConnection(ctx, conn), conn, nil
}

func (t *Tenancy) check(ctx context.Context, tenantID string) (err error) {
	if t.validate == nil || t.cache.allowed(tenantID) {
		return nil
	}
	ctx, span := xmetrics.Start(ctx, t.observer, xmetrics.SpanOptions{
		Component: component,
		Operation: "validate",
		Attrs:     []xmetrics.Attr{xmetrics.Tenant(tenantID)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if err = t.validate.Validate(ctx, tenantID); err != nil {
		t.logger.Info(ctx, "tenant rejected", xlog.Tenant(tenantID), xlog.Err(err))
		return fmt.Errorf("%w: tenant %s: %w", ErrValidationFailed, tenantID, err)
	}
	t.cache.remember(tenantID)
	return nil
}

// ForgetValidations 清空校验缓存，租户白名单变化后调用。
func (t *Tenancy) ForgetValidations() {
	t.cache.purge()
}

// Close 关闭全部租户连接，之后的解析返回 xpool.ErrPoolClosed。
func (t *Tenancy) Close(ctx context.Context) error {
	return t.pool.Close(ctx)
}
