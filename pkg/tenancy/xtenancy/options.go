package xtenancy

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
	"github.com/omeyang/xtenancy/pkg/tenancy/xschema"
)

// TenantPlaceholder URI 模板中的租户占位符
const TenantPlaceholder = "{tenant}"

type settings struct {
	identifier    string
	subdomain     bool
	uri           xpool.URIFunc
	clientOptions xpool.ClientOptionsFunc
	validator     Validator
	force         bool
	timeout       time.Duration
	cacheTTL      time.Duration
	cacheSize     int
	breaker       xpool.BreakerConfig
	dialer        xmongo.Dialer
	registry      *xschema.Registry
	logger        xlog.Logger
	observer      xmetrics.Observer
}

// Option Tenancy 配置项
type Option func(*settings)

// WithIdentifier 设置租户标识的来源键：HTTP header 名，或 gRPC / 事件载荷字段名。
func WithIdentifier(key string) Option {
	return func(s *settings) { s.identifier = strings.TrimSpace(key) }
}

// WithSubdomain 从 HTTP Host 的第一级子域名提取租户标识。
func WithSubdomain(enable bool) Option {
	return func(s *settings) { s.subdomain = enable }
}

// WithURI 设置按租户返回连接 URI 的函数，可以阻塞。
func WithURI(fn xpool.URIFunc) Option {
	return func(s *settings) { s.uri = fn }
}

// WithURITemplate 以模板生成 URI，TenantPlaceholder 替换为按路径段转义后的租户标识。
//
//	mongodb://localhost:27017/{tenant}
func WithURITemplate(tmpl string) Option {
	return func(s *settings) {
		tmpl = strings.TrimSpace(tmpl)
		if tmpl == "" {
			s.uri = nil
			return
		}
		s.uri = func(_ context.Context, tenantID string) (string, error) {
			if err := xtenant.CheckID(tenantID); err != nil {
				return "", err
			}
			return strings.ReplaceAll(tmpl, TenantPlaceholder, url.PathEscape(tenantID)), nil
		}
	}
}

// WithClientOptions 设置连接参数函数，每次创建连接时调用，可以阻塞。
func WithClientOptions(fn func(ctx context.Context) (*options.ClientOptions, error)) Option {
	return func(s *settings) { s.clientOptions = fn }
}

// WithValidator 设置租户校验。
func WithValidator(v Validator) Option {
	return func(s *settings) { s.validator = v }
}

// WithForceCreateCollections 返回连接前物化全部集合。
func WithForceCreateCollections(enable bool) Option {
	return func(s *settings) { s.force = enable }
}

// WithProvisionTimeout 设置创建连接的超时，非正值使用默认 30s。
func WithProvisionTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithValidationCache 缓存校验通过的租户 ttl 时长，最多 size 个。ttl 非正值关闭缓存。
func WithValidationCache(ttl time.Duration, size int) Option {
	return func(s *settings) {
		s.cacheTTL = ttl
		s.cacheSize = size
	}
}

// WithBreaker 按租户熔断连接创建。
func WithBreaker(cfg xpool.BreakerConfig) Option {
	return func(s *settings) { s.breaker = cfg }
}

// WithDialer 替换默认的 xmongo Dialer，测试中传入 xmongotest.Dialer。
func WithDialer(d xmongo.Dialer) Option {
	return func(s *settings) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithRegistry 使用外部注册表，多个 Tenancy 可以共享。
func WithRegistry(reg *xschema.Registry) Option {
	return func(s *settings) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithLogger 设置日志。
func WithLogger(l xlog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver 设置观测器。
func WithObserver(obs xmetrics.Observer) Option {
	return func(s *settings) {
		if obs != nil {
			s.observer = obs
		}
	}
}
