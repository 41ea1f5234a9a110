package repository

import (
	"context"
	"log/slog"

	"github.com/yuqie6/ecopulse/internal/schema"
)

// CommunityRepository 社区统计仓储（ecopulse_community_stats 文档）
type CommunityRepository struct {
	store *DocumentStore
}

// NewCommunityRepository 创建社区统计仓储
func NewCommunityRepository(store *DocumentStore) *CommunityRepository {
	return &CommunityRepository{store: store}
}

// Get 读取社区统计，文档缺失或损坏时返回默认值
func (r *CommunityRepository) Get(ctx context.Context) schema.CommunityStats {
	var stats schema.CommunityStats
	found, err := r.store.Read(ctx, DocKeyCommunityStats, &stats)
	if err != nil {
		slog.Error("读取社区统计失败", "error", err)
		return schema.DefaultCommunityStats()
	}
	if !found {
		return schema.DefaultCommunityStats()
	}
	return stats
}

// Save 整体覆盖写入社区统计
func (r *CommunityRepository) Save(ctx context.Context, stats schema.CommunityStats) error {
	return r.store.Write(ctx, DocKeyCommunityStats, stats)
}
