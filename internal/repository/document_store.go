package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yuqie6/ecopulse/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 四个命名文档的键，对应移动端 AsyncStorage 的存储键
const (
	DocKeyUser           = "ecopulse_user"
	DocKeyCommuteLogs    = "ecopulse_commute_logs"
	DocKeyUserSettings   = "ecopulse_user_settings"
	DocKeyCommunityStats = "ecopulse_community_stats"
)

// DocumentStore 命名 JSON 文档的读写层
// 每个键各自独立读-改-写，没有跨键事务；
// 崩溃发生在两次 Write 之间时，文档之间会永久失配
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore 创建文档存储
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Read 读取并反序列化文档到 out
// 文档缺失返回 (false, nil)；内容损坏记日志后按缺失处理，不向上暴露解码错误
func (s *DocumentStore) Read(ctx context.Context, key string, out any) (bool, error) {
	var doc schema.Document
	err := s.db.WithContext(ctx).First(&doc, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("读取文档失败: %w", err)
	}

	if err := json.Unmarshal([]byte(doc.Value), out); err != nil {
		slog.Warn("文档内容损坏，回退到默认值", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Write 序列化 value 并整体覆盖写入
// 底层存储故障原样上抛，不自动重试
func (s *DocumentStore) Write(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化文档失败: %w", err)
	}

	doc := schema.Document{Key: key, Value: string(b)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error; err != nil {
		return fmt.Errorf("写入文档失败: %w", err)
	}
	return nil
}

// Delete 删除文档（键不存在视为成功）
func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&schema.Document{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}
	return nil
}

// Keys 返回当前已存在的文档键
func (s *DocumentStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).
		Model(&schema.Document{}).
		Order("key ASC").
		Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("查询文档键失败: %w", err)
	}
	return keys, nil
}
