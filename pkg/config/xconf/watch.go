package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 100 * time.Millisecond

// WatchFunc 每次重载后调用，err 非 nil 表示重载失败（旧配置仍生效）。
type WatchFunc func(cfg Config, err error)

// Watch 监视 cfg 的文件，变更时重载并调用 fn，阻塞直到 ctx 结束。
//
// 回调在 Watch 的 goroutine 中串行执行，Watch 返回后不再有回调。
// debounce 非正值使用 DefaultDebounce。
func Watch(ctx context.Context, cfg Config, fn WatchFunc, debounce time.Duration) error {
	if cfg.Path() == "" {
		return ErrNotReloadable
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(cfg.Path())
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("xconf: watch %s: %w", dir, err)
	}

	name := filepath.Base(cfg.Path())
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case <-timer.C:
			if fn != nil {
				fn(cfg, cfg.Reload())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// 溢出时可能漏掉了变更，补一次重载
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				timer.Reset(debounce)
				continue
			}
			if fn != nil {
				fn(cfg, fmt.Errorf("xconf: watch: %w", err))
			}
		}
	}
}
