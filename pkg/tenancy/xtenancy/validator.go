package xtenancy

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

//go:generate mockgen -source=validator.go -destination=mock_validator_test.go -package=xtenancy_test

// Validator 校验租户标识，返回 nil 表示允许。
//
// 实现可以阻塞（例如查询 Redis 或配置中心），应响应 ctx 取消。
type Validator interface {
	Validate(ctx context.Context, tenantID string) error
}

// ValidatorFunc 函数形式的 Validator
type ValidatorFunc func(ctx context.Context, tenantID string) error

// Validate 实现 Validator。
func (f ValidatorFunc) Validate(ctx context.Context, tenantID string) error {
	return f(ctx, tenantID)
}

const defaultValidationCacheSize = 4096

// validationCache 缓存校验通过的租户，到期后重新校验。
// 失败结果不缓存。
type validationCache struct {
	ttl   time.Duration
	cache *lru.Cache[string, time.Time]
	now   func() time.Time
}

func newValidationCache(ttl time.Duration, size int) (*validationCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if size <= 0 {
		size = defaultValidationCacheSize
	}
	c, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("xtenancy: validation cache: %w", err)
	}
	return &validationCache{ttl: ttl, cache: c, now: time.Now}, nil
}

func (c *validationCache) allowed(tenantID string) bool {
	if c == nil {
		return false
	}
	exp, ok := c.cache.Get(tenantID)
	if !ok {
		return false
	}
	if c.now().After(exp) {
		c.cache.Remove(tenantID)
		return false
	}
	return true
}

func (c *validationCache) remember(tenantID string) {
	if c == nil {
		return
	}
	c.cache.Add(tenantID, c.now().Add(c.ttl))
}

func (c *validationCache) purge() {
	if c != nil {
		c.cache.Purge()
	}
}
