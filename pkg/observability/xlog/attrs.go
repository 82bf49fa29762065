package xlog

import (
	"log/slog"
	"time"
)

const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyComponent = "component"
	KeyTenant    = "tenant"
	KeyCount     = "count"
)

// Err 错误属性，nil 时返回空属性（slog 会忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Component 组件属性，通常用于 With。
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Tenant 租户属性，用于 context 之外显式记录租户。
func Tenant(id string) slog.Attr {
	return slog.String(KeyTenant, id)
}

// Count 计数属性
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
