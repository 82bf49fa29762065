package xtenancy

import (
	"time"

	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
)

// Config 文件形式的配置，经 xconf 加载。
//
//	tenancy:
//	  identifier: X-Tenant-Id
//	  uri: mongodb://localhost:27017/{tenant}
//	  force_create_collections: true
//	  provision_timeout: 30s
//	  validation_cache:
//	    ttl: 1m
//	    size: 4096
type Config struct {
	Identifier             string              `koanf:"identifier"`
	Subdomain              bool                `koanf:"subdomain"`
	URI                    string              `koanf:"uri"`
	ForceCreateCollections bool                `koanf:"force_create_collections"`
	ProvisionTimeout       time.Duration       `koanf:"provision_timeout"`
	ValidationCache        CacheConfig         `koanf:"validation_cache"`
	Breaker                xpool.BreakerConfig `koanf:"breaker"`
}

// CacheConfig 校验缓存配置
type CacheConfig struct {
	TTL  time.Duration `koanf:"ttl"`
	Size int           `koanf:"size"`
}

// Options 转为 Option，可与代码中的 Option 混用，后者覆盖前者。
func (c Config) Options() []Option {
	opts := []Option{
		WithIdentifier(c.Identifier),
		WithSubdomain(c.Subdomain),
		WithForceCreateCollections(c.ForceCreateCollections),
		WithProvisionTimeout(c.ProvisionTimeout),
		WithValidationCache(c.ValidationCache.TTL, c.ValidationCache.Size),
		WithBreaker(c.Breaker),
	}
	if c.URI != "" {
		opts = append(opts, WithURITemplate(c.URI))
	}
	return opts
}
