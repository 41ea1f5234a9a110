package schema

import "time"

// Document 命名 JSON 文档
// 四个文档各自独立读写，没有跨文档事务
type Document struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}
