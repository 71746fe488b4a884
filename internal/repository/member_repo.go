package repository

import (
	"context"

	"gorm.io/gorm"

	"raid-loot/backend/internal/model"
	pkgerrors "raid-loot/backend/pkg/errors"
)

// MemberRepository 成员数据访问接口
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	GetByName(ctx context.Context, name string) (*model.Member, error)
	Update(ctx context.Context, member *model.Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]model.Member, int64, error)
	ListAll(ctx context.Context) ([]model.Member, error)
}

// memberRepo MemberRepository 的 GORM 实现
type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepo 创建 MemberRepository 实例
func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) GetByName(ctx context.Context, name string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Update 整行写回（乐观锁：version 不匹配时返回 ErrOptimisticLock）
func (r *memberRepo) Update(ctx context.Context, member *model.Member) error {
	oldVersion := member.Version
	result := r.db.WithContext(ctx).
		Model(&model.Member{}).
		Where("member_id = ? AND version = ?", member.MemberID, oldVersion).
		Updates(map[string]interface{}{
			"name":                  member.Name,
			"role":                  member.Role,
			"pin_hash":              member.PINHash,
			"main_spec_link":        member.MainSpecLink,
			"main_spec_gear":        member.MainSpecGear,
			"main_spec_link_states": member.MainSpecLinkStates,
			"off_spec_link":         member.OffSpecLink,
			"off_spec_gear":         member.OffSpecGear,
			"off_spec_link_states":  member.OffSpecLinkStates,
			"version":               oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	member.Version = oldVersion + 1
	return nil
}

func (r *memberRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		Delete(&model.Member{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *memberRepo) List(ctx context.Context, offset, limit int) ([]model.Member, int64, error) {
	var members []model.Member
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Member{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("name ASC").
		Find(&members).Error; err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// ListAll 返回全部在册成员（资格计算用）
func (r *memberRepo) ListAll(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&members).Error
	return members, err
}
