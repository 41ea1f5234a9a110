package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/ecopulse/internal/schema"
)

// CommuteLogRepository 通勤记录仓储（ecopulse_commute_logs 文档）
// 文档内是完整记录列表，追加走读-改-写
type CommuteLogRepository struct {
	store *DocumentStore
}

// NewCommuteLogRepository 创建通勤记录仓储
func NewCommuteLogRepository(store *DocumentStore) *CommuteLogRepository {
	return &CommuteLogRepository{store: store}
}

// List 读取全部通勤记录，文档缺失或损坏时返回空列表
func (r *CommuteLogRepository) List(ctx context.Context) []schema.CommuteLog {
	var logs []schema.CommuteLog
	found, err := r.store.Read(ctx, DocKeyCommuteLogs, &logs)
	if err != nil {
		slog.Error("读取通勤记录失败", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return logs
}

// Append 追加一条通勤记录
func (r *CommuteLogRepository) Append(ctx context.Context, log *schema.CommuteLog) error {
	if log == nil {
		return fmt.Errorf("log 不能为空")
	}
	logs := r.List(ctx)
	logs = append(logs, *log)
	return r.store.Write(ctx, DocKeyCommuteLogs, logs)
}

// ReplaceAll 整体覆盖记录列表（导入合并用）
func (r *CommuteLogRepository) ReplaceAll(ctx context.Context, logs []schema.CommuteLog) error {
	if logs == nil {
		logs = []schema.CommuteLog{}
	}
	return r.store.Write(ctx, DocKeyCommuteLogs, logs)
}
