package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yuqie6/ecopulse/internal/eventbus"
	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
	"github.com/yuqie6/ecopulse/internal/service"
)

// Bundle 移动端导出的记录包
type Bundle struct {
	Version    int                 `json:"version"`
	ExportedAt int64               `json:"exported_at"`
	Logs       []schema.CommuteLog `json:"logs"`
}

// Importer 导出包导入器：按记录 ID 去重合并到本机记录文档，
// 新增记录逐条回放社区统计增量
type Importer struct {
	logs      *repository.CommuteLogRepository
	community *repository.CommunityRepository
	hub       *eventbus.Hub

	nowFn func() time.Time
}

// NewImporter 创建导入器
func NewImporter(
	logs *repository.CommuteLogRepository,
	community *repository.CommunityRepository,
	hub *eventbus.Hub,
) *Importer {
	return &Importer{
		logs:      logs,
		community: community,
		hub:       hub,
		nowFn:     time.Now,
	}
}

// SetNowFunc 注入参考时钟（测试用）
func (im *Importer) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		im.nowFn = fn
	}
}

// ImportFile 读取并合并一个导出包文件，返回新增记录数
// 重复导入同一文件是幂等的
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取导出包失败: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(b, &bundle); err != nil {
		return 0, fmt.Errorf("解析导出包失败: %w", err)
	}

	added, err := im.Merge(ctx, bundle.Logs)
	if err != nil {
		return 0, err
	}
	slog.Info("导出包导入完成", "path", path, "added", added, "bundle_size", len(bundle.Logs))
	return added, nil
}

// Merge 将记录合并进记录文档，按 ID 去重；返回实际新增数
func (im *Importer) Merge(ctx context.Context, incoming []schema.CommuteLog) (int, error) {
	if len(incoming) == 0 {
		return 0, nil
	}

	existing := im.logs.List(ctx)
	seen := make(map[string]struct{}, len(existing))
	for _, log := range existing {
		seen[log.ID] = struct{}{}
	}

	now := im.nowFn()
	stats := im.community.Get(ctx)
	merged := existing
	added := 0

	for i := range incoming {
		log := incoming[i]
		if log.ID == "" || log.UserID == "" || len(log.Modes) == 0 || log.CO2Saved < 0 {
			slog.Warn("跳过非法导入记录", "log_id", log.ID)
			continue
		}
		if _, ok := seen[log.ID]; ok {
			continue
		}
		seen[log.ID] = struct{}{}
		merged = append(merged, log)
		service.ApplyLogDelta(&stats, &log, now)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	// 导入的记录日期可能早于本机已有记录，合并后恢复日期降序
	schema.SortLogsByDateDesc(merged)

	if err := im.logs.ReplaceAll(ctx, merged); err != nil {
		return 0, fmt.Errorf("写入合并结果失败: %w", err)
	}
	if err := im.community.Save(ctx, stats); err != nil {
		return added, fmt.Errorf("更新社区统计失败: %w", err)
	}

	im.hub.Publish(eventbus.Event{Type: eventbus.TypeLogsUpdated})
	im.hub.Publish(eventbus.Event{Type: eventbus.TypeCommunityUpdated})
	return added, nil
}
