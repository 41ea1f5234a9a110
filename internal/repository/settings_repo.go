package repository

import (
	"context"
	"log/slog"

	"github.com/yuqie6/ecopulse/internal/schema"
)

// SettingsRepository 用户设置仓储（ecopulse_user_settings 文档）
// 按安装全局一份，不按用户区分
type SettingsRepository struct {
	store *DocumentStore
}

// NewSettingsRepository 创建设置仓储
func NewSettingsRepository(store *DocumentStore) *SettingsRepository {
	return &SettingsRepository{store: store}
}

// Get 读取设置，文档缺失或损坏时返回默认值
func (r *SettingsRepository) Get(ctx context.Context) schema.UserSettings {
	var settings schema.UserSettings
	found, err := r.store.Read(ctx, DocKeyUserSettings, &settings)
	if err != nil {
		slog.Error("读取用户设置失败", "error", err)
		return schema.DefaultUserSettings()
	}
	if !found {
		return schema.DefaultUserSettings()
	}
	return settings
}

// Save 整体覆盖写入设置
func (r *SettingsRepository) Save(ctx context.Context, settings schema.UserSettings) error {
	return r.store.Write(ctx, DocKeyUserSettings, settings)
}
