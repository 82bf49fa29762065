package xtenant

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrMissingConfig 未配置任何租户标识来源
	ErrMissingConfig = errors.New("xtenant: tenant identifier source is not configured")

	// ErrMissingIdentifier 已配置来源，但本次调用未携带租户标识
	ErrMissingIdentifier = errors.New("xtenant: tenant identifier is not supplied")

	// ErrInvalidIdentifier 租户标识不是标量（例如非空对象或数组）
	ErrInvalidIdentifier = errors.New("xtenant: tenant identifier is not a scalar")

	// ErrUnsafeIdentifier 租户标识含有不能出现在连接串或库名中的字符
	ErrUnsafeIdentifier = errors.New("xtenant: tenant identifier contains reserved characters")

	// ErrUnknownKind Source.Kind 不是已知形态
	ErrUnknownKind = errors.New("xtenant: unknown source kind")
)

// Error 提取失败的详细错误。
//
// Kind 记录失败发生在哪种调用形态上，传输层据此选择渲染方式。
type Error struct {
	Kind Kind
	// Key 本次查找的字段名，子域名模式下为 "host"
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s (%s)", e.Err, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Err, e.Key, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus 返回 HTTP 状态码，提取错误均为 400。
func (e *Error) HTTPStatus() int { return http.StatusBadRequest }

// GRPCStatus 使 status.FromError 能直接识别提取错误。
func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

func newError(kind Kind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

// IsExtractError 判断 err 是否为提取阶段的错误。
func IsExtractError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
