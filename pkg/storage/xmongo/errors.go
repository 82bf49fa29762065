package xmongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	// ErrNilContext 传入的 context 为 nil（Close 例外，nil 视为 Background）
	ErrNilContext = errors.New("xmongo: context must not be nil")

	// ErrNilClient 传入的 client 为 nil
	ErrNilClient = errors.New("xmongo: nil client")

	// ErrEmptyURI URI 为空
	ErrEmptyURI = errors.New("xmongo: empty uri")

	// ErrInvalidURI URI 无法解析
	ErrInvalidURI = errors.New("xmongo: invalid uri")

	// ErrEmptyCollection 集合名为空
	ErrEmptyCollection = errors.New("xmongo: empty collection name")

	// ErrClosed 连接已关闭
	ErrClosed = errors.New("xmongo: backend closed")
)

// codeNamespaceExists 集合已存在
const codeNamespaceExists = 48

// IsNamespaceExists 判断 err 是否为集合已存在。
func IsNamespaceExists(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == codeNamespaceExists || ce.Name == "NamespaceExists"
	}
	return false
}
