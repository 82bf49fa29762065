package xallow

import "errors"

var (
	// ErrNotAllowed 租户不在白名单内
	ErrNotAllowed = errors.New("xallow: tenant not allowed")
	// ErrNilClient Redis 客户端为 nil
	ErrNilClient = errors.New("xallow: nil redis client")
	// ErrEmptyKey Redis key 为空
	ErrEmptyKey = errors.New("xallow: empty redis key")
)
