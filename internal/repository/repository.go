package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db         *gorm.DB
	Member     MemberRepository
	Week       WeekRepository
	Assignment AssignmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Member:     NewMemberRepo(db),
		Week:       NewWeekRepo(db),
		Assignment: NewAssignmentRepo(db),
	}
}

// BeginTx 开启事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{
		db:         tx,
		Member:     NewMemberRepo(tx),
		Week:       NewWeekRepo(tx),
		Assignment: NewAssignmentRepo(tx),
	}
}

// RunInTx 在事务中执行 fn，fn 返回错误或 panic 时回滚
// 未绑定数据库（单元测试注入 mock）时直接以自身执行
func (r *Repository) RunInTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
