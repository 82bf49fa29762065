package xmongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// DatabaseName 返回 URI 路径中的数据库名，未指定时返回 DefaultDatabase。
//
//	mongodb://127.0.0.1:27017/test-tenant-dog-club -> test-tenant-dog-club
func DatabaseName(uri string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", ErrEmptyURI
	}
	cs, err := connstring.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}
