package repository

import (
	"context"

	"gorm.io/gorm"

	"raid-loot/backend/internal/model"
)

// WeekRepository 周次数据访问接口
type WeekRepository interface {
	Create(ctx context.Context, week *model.Week) error
	GetByNumber(ctx context.Context, number int) (*model.Week, error)
	GetCurrent(ctx context.Context) (*model.Week, error)
	GetLatest(ctx context.Context) (*model.Week, error)
	List(ctx context.Context) ([]model.Week, error)
	MaxNumber(ctx context.Context) (int, error)
	ClearCurrent(ctx context.Context) error
	SetCurrent(ctx context.Context, number int) error
	Delete(ctx context.Context, number int) error
}

// weekRepo WeekRepository 的 GORM 实现
type weekRepo struct {
	db *gorm.DB
}

// NewWeekRepo 创建 WeekRepository 实例
func NewWeekRepo(db *gorm.DB) WeekRepository {
	return &weekRepo{db: db}
}

func (r *weekRepo) Create(ctx context.Context, week *model.Week) error {
	return r.db.WithContext(ctx).Create(week).Error
}

func (r *weekRepo) GetByNumber(ctx context.Context, number int) (*model.Week, error) {
	var week model.Week
	err := r.db.WithContext(ctx).
		Where("week_number = ?", number).
		First(&week).Error
	if err != nil {
		return nil, err
	}
	return &week, nil
}

// GetCurrent 获取当前周；不存在时返回 gorm.ErrRecordNotFound
func (r *weekRepo) GetCurrent(ctx context.Context) (*model.Week, error) {
	var week model.Week
	err := r.db.WithContext(ctx).
		Where("is_current = ?", true).
		First(&week).Error
	if err != nil {
		return nil, err
	}
	return &week, nil
}

// GetLatest 获取周次号最大的一周
func (r *weekRepo) GetLatest(ctx context.Context) (*model.Week, error) {
	var week model.Week
	err := r.db.WithContext(ctx).
		Order("week_number DESC").
		First(&week).Error
	if err != nil {
		return nil, err
	}
	return &week, nil
}

func (r *weekRepo) List(ctx context.Context) ([]model.Week, error) {
	var weeks []model.Week
	err := r.db.WithContext(ctx).
		Order("week_number DESC").
		Find(&weeks).Error
	return weeks, err
}

// MaxNumber 当前最大周次号；无周次时返回 0
func (r *weekRepo) MaxNumber(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.Week{}).
		Select("COALESCE(MAX(week_number), 0)").
		Scan(&max).Error
	return max, err
}

func (r *weekRepo) ClearCurrent(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.Week{}).
		Where("is_current = ?", true).
		Update("is_current", false).Error
}

func (r *weekRepo) SetCurrent(ctx context.Context, number int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Week{}).
		Where("week_number = ?", number).
		Update("is_current", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *weekRepo) Delete(ctx context.Context, number int) error {
	return r.db.WithContext(ctx).
		Where("week_number = ?", number).
		Delete(&model.Week{}).Error
}
