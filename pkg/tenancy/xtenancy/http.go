package xtenancy

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
)

// HeaderRequestID 请求 ID 的 HTTP header
const HeaderRequestID = "X-Request-ID"

// ErrorHandler 渲染解析失败的响应。
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// HTTPOption HTTP 中间件选项
type HTTPOption func(*httpConfig)

type httpConfig struct {
	skip    func(*http.Request) bool
	onError ErrorHandler
}

// WithSkipper 对 fn 返回 true 的请求跳过租户解析，直接交给下游。
func WithSkipper(fn func(*http.Request) bool) HTTPOption {
	return func(c *httpConfig) { c.skip = fn }
}

// SkipPaths 返回按路径前缀跳过的 skipper。
func SkipPaths(prefixes ...string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}

// WithErrorHandler 替换默认的错误响应。
func WithErrorHandler(fn ErrorHandler) HTTPOption {
	return func(c *httpConfig) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// WriteError 默认错误响应：按 HTTPStatus 取状态码，5xx 不暴露内部错误。
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	code := HTTPStatus(err)
	msg := http.StatusText(code)
	if code < http.StatusInternalServerError {
		msg = err.Error()
	}
	http.Error(w, msg, code)
}

// HTTPMiddleware 返回 HTTP 中间件：解析租户并把连接放进请求 context。
//
// 每个请求都会带上 request ID（沿用上游 X-Request-ID，否则生成），跳过的请求也不例外。
func (t *Tenancy) HTTPMiddleware(opts ...HTTPOption) func(http.Handler) http.Handler {
	cfg := &httpConfig{onError: WriteError}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if rid := strings.TrimSpace(r.Header.Get(HeaderRequestID)); rid != "" {
				ctx, _ = xctx.WithRequestID(ctx, rid)
			} else {
				ctx, _ = xctx.EnsureRequestID(ctx)
			}
			w.Header().Set(HeaderRequestID, xctx.RequestID(ctx))
			r = r.WithContext(ctx)

			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, _, err := t.Bind(ctx, xtenant.FromHTTPRequest(r))
			if err != nil {
				t.logger.Debug(r.Context(), "resolve tenant failed",
					xlog.Err(err), slog.Int("status", HTTPStatus(err)))
				cfg.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant 拒绝 context 中没有租户连接的请求（400）。
// 用于挂在跳过解析的路由组里、个别仍需要租户的接口上。
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ConnectionFrom(r.Context()); err != nil {
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
