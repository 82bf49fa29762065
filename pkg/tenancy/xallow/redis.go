package xallow

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey 白名单 Set 的默认 key
const DefaultRedisKey = "xtenancy:tenants"

// Redis 以 Redis Set 存放白名单。
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis 创建 Redis 白名单，key 为空时使用 DefaultRedisKey。
func NewRedis(client redis.UniversalClient, key string) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}, nil
}

// Key 返回 Set 的 key。
func (r *Redis) Key() string { return r.key }

// Validate 实现 xtenancy.Validator。
func (r *Redis) Validate(ctx context.Context, tenantID string) error {
	ok, err := r.client.SIsMember(ctx, r.key, tenantID).Result()
	if err != nil {
		return fmt.Errorf("xallow: check %s: %w", tenantID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAllowed, tenantID)
	}
	return nil
}

// Add 加入白名单。
func (r *Redis) Add(ctx context.Context, tenantIDs ...string) error {
	if len(tenantIDs) == 0 {
		return nil
	}
	if err := r.client.SAdd(ctx, r.key, toAny(tenantIDs)...).Err(); err != nil {
		return fmt.Errorf("xallow: add: %w", err)
	}
	return nil
}

// Remove 移出白名单。
func (r *Redis) Remove(ctx context.Context, tenantIDs ...string) error {
	if len(tenantIDs) == 0 {
		return nil
	}
	if err := r.client.SRem(ctx, r.key, toAny(tenantIDs)...).Err(); err != nil {
		return fmt.Errorf("xallow: remove: %w", err)
	}
	return nil
}

// Sync 用 ids 整体替换白名单，在一个事务中完成。
func (r *Redis) Sync(ctx context.Context, ids []string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key)
		if len(ids) > 0 {
			p.SAdd(ctx, r.key, toAny(ids)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xallow: sync: %w", err)
	}
	return nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
