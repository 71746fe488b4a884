package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用审计字段（业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// AllModels 返回需要建表的全部模型（sqlite AutoMigrate 与测试共用）
func AllModels() []interface{} {
	return []interface{}{
		&Member{},
		&Week{},
		&LootAssignment{},
	}
}
