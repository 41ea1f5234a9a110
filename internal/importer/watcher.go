package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig 监听目录配置
type WatcherConfig struct {
	WatchDir    string // 导出包投递目录
	DebounceSec int    // 防抖时间（秒），写入完成后才导入
}

// DefaultWatcherConfig 默认配置
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{DebounceSec: 2}
}

// Watcher 监听投递目录，发现 *.json 导出包后自动导入
// 导入成功的文件改名加 .imported 后缀，避免重复处理
type Watcher struct {
	importer    *Importer
	watcher     *fsnotify.Watcher
	watchDir    string
	debounceDur time.Duration

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopChan chan struct{}
	pending  map[string]time.Time // 防抖：file -> 最近一次写事件
}

// NewWatcher 创建目录监听器
func NewWatcher(im *Importer, cfg *WatcherConfig) (*Watcher, error) {
	if im == nil {
		return nil, fmt.Errorf("importer 不能为空")
	}
	if cfg == nil {
		cfg = DefaultWatcherConfig()
	}
	if strings.TrimSpace(cfg.WatchDir) == "" {
		return nil, fmt.Errorf("watch_dir 不能为空")
	}
	if cfg.DebounceSec <= 0 {
		cfg.DebounceSec = 2
	}

	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, fmt.Errorf("创建投递目录失败: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}
	if err := fw.Add(cfg.WatchDir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("添加监控目录失败: %w", err)
	}

	return &Watcher{
		importer:    im,
		watcher:     fw,
		watchDir:    cfg.WatchDir,
		debounceDur: time.Duration(cfg.DebounceSec) * time.Second,
		stopChan:    make(chan struct{}),
		pending:     map[string]time.Time{},
	}, nil
}

// Start 启动监听；先处理目录中已存在的文件
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.importExisting(ctx)

	slog.Info("导入监听启动", "watch_dir", w.watchDir)
	go w.watchLoop(ctx)
	return nil
}

// Stop 停止监听
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
	})
	return err
}

// importExisting 处理启动前已投递的文件
func (w *Watcher) importExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.watchDir)
	if err != nil {
		slog.Warn("扫描投递目录失败", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.watchDir, entry.Name())
		if isBundleFile(path) {
			w.importOne(ctx, path)
		}
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(w.debounceDur / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isBundleFile(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("文件监控错误", "error", err)
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// flushPending 导入已静默超过防抖窗口的文件
func (w *Watcher) flushPending(ctx context.Context) {
	cutoff := time.Now().Add(-w.debounceDur)

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.importOne(ctx, path)
	}
}

func (w *Watcher) importOne(ctx context.Context, path string) {
	added, err := w.importer.ImportFile(ctx, path)
	if err != nil {
		slog.Error("导入导出包失败", "path", path, "error", err)
		return
	}

	if err := os.Rename(path, path+".imported"); err != nil {
		slog.Warn("标记已导入文件失败", "path", path, "error", err)
	}
	slog.Info("自动导入完成", "path", path, "added", added)
}

// isBundleFile 判断是否为待导入的导出包
func isBundleFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
