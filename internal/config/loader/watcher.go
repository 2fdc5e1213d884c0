// Package loader 监听风控配置文件，在文件变更时重新加载并广播新快照。
package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Snapshot 对外暴露的只读配置快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Config   *config.Config
}

// ChangeListener 在配置变更时被调用。
type ChangeListener func(Snapshot)

// Watcher 负责从 YAML 文件中加载配置，并监听热更新。
// 重载失败时保留上一份有效快照。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []*subscriber
}

// subscriber 按版本顺序向单个监听器投递快照；投递期间到达的多个快照只保留最新一份。
type subscriber struct {
	fn ChangeListener

	mu        sync.Mutex
	pending   *Snapshot
	running   bool
	delivered int64
}

func (s *subscriber) deliver(snap Snapshot) {
	s.mu.Lock()
	if s.pending == nil || snap.Version > s.pending.Version {
		s.pending = &snap
	}
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.drain()
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		next := s.pending
		s.pending = nil
		if next == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		if next.Version <= s.delivered {
			s.mu.Unlock()
			continue
		}
		s.delivered = next.Version
		s.mu.Unlock()
		safeCall(s.fn, *next)
	}
}

// NewWatcher 读取配置文件；watch 为 true 时开始监听 FS 事件。
func NewWatcher(path string, watch bool) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	w := &Watcher{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}
	if !watch {
		return w, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.Reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
		}
	})
	v.WatchConfig()
	w.v = v
	return w, nil
}

// Snapshot 返回当前配置快照。
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	sub := &subscriber{fn: fn}
	w.mu.Lock()
	w.listeners = append(w.listeners, sub)
	snap := w.snapshot
	w.mu.Unlock()
	sub.deliver(snap)
}

// Reload 立即重新读取文件并通知监听器。
func (w *Watcher) Reload() error {
	if err := w.reload(); err != nil {
		return err
	}
	w.notify()
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	snap := w.snapshot
	listeners := append([]*subscriber(nil), w.listeners...)
	w.mu.RUnlock()
	for _, sub := range listeners {
		sub.deliver(snap)
	}
}

func safeCall(fn ChangeListener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("config listener panic: %v", r)
		}
	}()
	fn(snap)
}

func (w *Watcher) reload() error {
	cfg, err := config.Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.snapshot = Snapshot{
		Version:  w.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Config:   cfg,
	}
	version := w.snapshot.Version
	w.mu.Unlock()
	logger.Infof("Config watcher loaded version %d from %s", version, filepath.Base(w.path))
	return nil
}
