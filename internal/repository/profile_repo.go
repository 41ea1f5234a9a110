package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/ecopulse/internal/schema"
)

// ProfileRepository 当前用户档案仓储（ecopulse_user 文档）
type ProfileRepository struct {
	store *DocumentStore
}

// NewProfileRepository 创建档案仓储
func NewProfileRepository(store *DocumentStore) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// Get 读取当前用户档案，未注册或读取失败时返回 nil
func (r *ProfileRepository) Get(ctx context.Context) *schema.UserProfile {
	var profile schema.UserProfile
	found, err := r.store.Read(ctx, DocKeyUser, &profile)
	if err != nil {
		slog.Error("读取用户档案失败", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return &profile
}

// Save 覆盖写入用户档案
func (r *ProfileRepository) Save(ctx context.Context, profile *schema.UserProfile) error {
	if profile == nil {
		return fmt.Errorf("profile 不能为空")
	}
	return r.store.Write(ctx, DocKeyUser, profile)
}

// Clear 清除用户档案（登出）
// 只动这一个文档，通勤记录与设置保留
func (r *ProfileRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, DocKeyUser)
}
