package xallow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

// Static 进程内白名单，并发安全。
type Static struct {
	ids atomic.Pointer[map[string]struct{}]
}

// NewStatic 以 ids 创建白名单，空白项忽略。
func NewStatic(ids ...string) *Static {
	s := &Static{}
	s.Replace(ids)
	return s
}

// Replace 整体替换白名单。
func (s *Static) Replace(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	s.ids.Store(&set)
}

// Allowed 报告 tenantID 是否在白名单内。
func (s *Static) Allowed(tenantID string) bool {
	_, ok := (*s.ids.Load())[tenantID]
	return ok
}

// Validate 实现 xtenancy.Validator。
func (s *Static) Validate(_ context.Context, tenantID string) error {
	if !s.Allowed(tenantID) {
		return fmt.Errorf("%w: %s", ErrNotAllowed, tenantID)
	}
	return nil
}

// List 返回排序后的白名单。
func (s *Static) List() []string {
	set := *s.ids.Load()
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *Static) Len() int { return len(*s.ids.Load()) }
