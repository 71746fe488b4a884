package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"raid-loot/backend/internal/model"
	pkgerrors "raid-loot/backend/pkg/errors"
)

// AssignmentFilter 分配记录查询条件
type AssignmentFilter struct {
	WeekNumber    *int
	MemberID      string
	IncludeUndone bool
	Offset        int
	Limit         int // <= 0 表示不分页
}

// AssignmentRepository 分配账本数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, a *model.LootAssignment) error
	GetByID(ctx context.Context, id string) (*model.LootAssignment, error)
	// ListActiveByFloor 某周某层未撤销的分配（不含手动编辑）
	ListActiveByFloor(ctx context.Context, week, floor int) ([]model.LootAssignment, error)
	// FindActiveManualEdit 查找覆盖同一（成员, 槽位, 材料标记, 配装, 周）的未撤销手动编辑
	FindActiveManualEdit(ctx context.Context, week int, memberID string, slot model.GearSlot, isMaterial bool, spec model.SpecType) (*model.LootAssignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]model.LootAssignment, int64, error)
	// ListActiveExtra 全部周次中未撤销的 Extra 分配
	ListActiveExtra(ctx context.Context) ([]model.LootAssignment, error)
	MarkUndone(ctx context.Context, id string) error
	DeleteByWeek(ctx context.Context, week int) error
}

// assignmentRepo AssignmentRepository 的 GORM 实现
type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

// Create 写入账本；同一周同一层的掉落重复时返回 ErrDuplicateDrop
func (r *assignmentRepo) Create(ctx context.Context, a *model.LootAssignment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicateDrop
	}
	return err
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.LootAssignment, error) {
	var a model.LootAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) ListActiveByFloor(ctx context.Context, week, floor int) ([]model.LootAssignment, error) {
	var list []model.LootAssignment
	err := r.db.WithContext(ctx).
		Where("week_number = ? AND floor_number = ? AND is_undone = ? AND is_manual_edit = ?", week, floor, false, false).
		Order("assigned_at ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) FindActiveManualEdit(ctx context.Context, week int, memberID string, slot model.GearSlot, isMaterial bool, spec model.SpecType) (*model.LootAssignment, error) {
	var a model.LootAssignment
	err := r.db.WithContext(ctx).
		Where("week_number = ? AND member_id = ? AND slot = ? AND is_upgrade_material = ? AND spec_type = ?",
			week, memberID, slot, isMaterial, spec).
		Where("is_manual_edit = ? AND is_undone = ?", true, false).
		Order("assigned_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) List(ctx context.Context, filter AssignmentFilter) ([]model.LootAssignment, int64, error) {
	var list []model.LootAssignment
	var total int64

	db := r.db.WithContext(ctx).Model(&model.LootAssignment{})
	if filter.WeekNumber != nil {
		db = db.Where("week_number = ?", *filter.WeekNumber)
	}
	if filter.MemberID != "" {
		db = db.Where("member_id = ?", filter.MemberID)
	}
	if !filter.IncludeUndone {
		db = db.Where("is_undone = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Preload("Member").Order("week_number DESC, assigned_at ASC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *assignmentRepo) ListActiveExtra(ctx context.Context) ([]model.LootAssignment, error) {
	var list []model.LootAssignment
	err := r.db.WithContext(ctx).
		Where("spec_type = ? AND is_undone = ?", model.SpecExtra, false).
		Order("assigned_at ASC").
		Find(&list).Error
	return list, err
}

// MarkUndone 将 is_undone 由 false 翻转为 true；已被撤销时返回 ErrOptimisticLock
func (r *assignmentRepo) MarkUndone(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.LootAssignment{}).
		Where("assignment_id = ? AND is_undone = ?", id, false).
		Update("is_undone", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// DeleteByWeek 物理删除某周全部分配记录
func (r *assignmentRepo) DeleteByWeek(ctx context.Context, week int) error {
	return r.db.WithContext(ctx).
		Where("week_number = ?", week).
		Delete(&model.LootAssignment{}).Error
}
