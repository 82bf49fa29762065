package xschema

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrInvalidDefinition 模型定义不合法
	ErrInvalidDefinition = errors.New("xschema: invalid model definition")
)

// Registry 模型定义注册表，并发安全。
type Registry struct {
	mu    sync.RWMutex
	defs  []ModelDefinition
	index map[string]int
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register 注册模型定义。
//
// 同名模型已存在时保留原定义并返回 added=false。
// 名称为空、判别器名称为空或重复时返回 ErrInvalidDefinition。
func (r *Registry) Register(def ModelDefinition) (added bool, err error) {
	if err := validate(def); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[def.Name]; ok {
		return false, nil
	}
	r.index[def.Name] = len(r.defs)
	r.defs = append(r.defs, def.clone())
	return true, nil
}

// Has 报告是否已注册 name。
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// Get 返回 name 对应的定义。
func (r *Registry) Get(name string) (ModelDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return ModelDefinition{}, false
	}
	return r.defs[i].clone(), true
}

// All 按注册顺序返回全部定义的副本。
func (r *Registry) All() []ModelDefinition {
	return r.Since(0)
}

// Since 返回从第 n 个（0 起）开始注册的定义，用于增量同步。
// n 超出范围时返回 nil。
func (r *Registry) Since(n int) []ModelDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(r.defs) {
		return nil
	}
	out := make([]ModelDefinition, 0, len(r.defs)-n)
	for _, d := range r.defs[n:] {
		out = append(out, d.clone())
	}
	return out
}

// Len 返回已注册定义数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

func validate(def ModelDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	seen := make(map[string]struct{}, len(def.Discriminators))
	for _, d := range def.Discriminators {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: %s has a discriminator with empty name", ErrInvalidDefinition, def.Name)
		}
		if d.Name == def.Name {
			return fmt.Errorf("%w: discriminator %s shadows its base model", ErrInvalidDefinition, d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: %s declares discriminator %s twice", ErrInvalidDefinition, def.Name, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}
