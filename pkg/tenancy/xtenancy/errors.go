package xtenancy

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/omeyang/xtenancy/pkg/context/xtenant"
	"github.com/omeyang/xtenancy/pkg/tenancy/xpool"
)

var (
	// ErrMissingURI 未配置连接 URI
	ErrMissingURI = errors.New("xtenancy: connection uri is not configured")
	// ErrValidationFailed 租户未通过校验
	ErrValidationFailed = errors.New("xtenancy: tenant validation failed")
	// ErrNoConnection context 中没有租户连接
	ErrNoConnection = errors.New("xtenancy: no tenant connection in context")
	// ErrUnknownModel 连接上没有该模型
	ErrUnknownModel = errors.New("xtenancy: unknown model")
	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xtenancy: nil context")
)

// HTTPStatus 返回 err 对应的 HTTP 状态码。
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case xtenant.IsExtractError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidationFailed):
		return http.StatusForbidden
	case errors.Is(err, ErrNoConnection):
		return http.StatusBadRequest
	case errors.Is(err, xpool.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, xpool.ErrConnection), errors.Is(err, xpool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus 返回 err 对应的 gRPC 状态。
func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	var code codes.Code
	switch {
	case xtenant.IsExtractError(err), errors.Is(err, ErrNoConnection):
		code = codes.InvalidArgument
	case errors.Is(err, ErrValidationFailed):
		code = codes.PermissionDenied
	case errors.Is(err, xpool.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, xpool.ErrConnection), errors.Is(err, xpool.ErrPoolClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.New(code, err.Error())
}
