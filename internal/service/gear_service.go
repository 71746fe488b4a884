package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/repository"
)

// ── 配装模块业务错误 ──

var (
	ErrNotUpgradable = errors.New("该槽位不是点数装备，无需强化材料")
	ErrMissingValue  = errors.New("缺少 value 字段")
)

// GearService 配装业务接口
//
// 设计说明：
//   - Import 先在锁外获取外部清单（有超时），再在全局写锁内完成合并与持久化
//   - 链接状态缓存记录每个链接下各槽位的获取状态，重新导入旧链接时恢复进度
//   - 手动编辑同时写入账本（IsManualEdit），保证历史完整
type GearService interface {
	Import(ctx context.Context, memberID string, req *dto.ImportGearRequest, callerID, callerRole string) (*dto.MemberDetailResponse, error)
	SetItemAcquired(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string) (*dto.GearItemResponse, error)
	SetUpgradeAcquired(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string) (*dto.GearItemResponse, error)
}

type gearService struct {
	repo   *repository.Repository
	source GearListSource
	locker WriteLocker
	now    func() time.Time
	logger *zap.Logger
}

// NewGearService 创建 GearService 实例
func NewGearService(repo *repository.Repository, source GearListSource, locker WriteLocker, logger *zap.Logger) GearService {
	return &gearService{
		repo:   repo,
		source: source,
		locker: locker,
		now:    time.Now,
		logger: logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Import — 从外部清单导入一套配装
// ═══════════════════════════════════════════════════════════
//
// 步骤：
//  1. 解析链接，确认成员存在，获取外部清单（锁外）
//  2. 加锁后重新读取成员，快照另一套配装
//  3. 新条目套用该链接的缓存状态，再把全部条目写回缓存
//  4. 还原另一套配装快照，最后一步持久化

func (s *gearService) Import(ctx context.Context, memberID string, req *dto.ImportGearRequest, callerID, callerRole string) (*dto.MemberDetailResponse, error) {
	spec := model.SpecType(req.SpecType)
	if !spec.IsGearSpec() {
		return nil, ErrInvalidSpecType
	}
	if !canEditGear(callerID, callerRole, memberID) {
		return nil, ErrNoPermission
	}

	link, err := ParseGearLink(req.Link)
	if err != nil {
		return nil, err
	}

	if _, err := findMember(ctx, s.repo, memberID); err != nil {
		return nil, err
	}

	items, err := s.source.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	member, err := findMember(ctx, s.repo, memberID)
	if err != nil {
		return nil, err
	}

	other := member.Record(spec.Other())

	rec := member.Record(spec)
	rec.RememberItems()
	rec.Link = link.Canonical()
	rec.Items = items
	rec.RestoreItems(rec.Link)
	rec.RememberItems()
	member.ApplyRecord(spec, rec)

	member.ApplyRecord(spec.Other(), other)

	if err := s.repo.Member.Update(ctx, member); err != nil {
		s.logger.Error("保存导入的配装失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, persistErr(err)
	}

	s.logger.Info("配装导入完成",
		zap.String("member_id", memberID),
		zap.String("spec", string(spec)),
		zap.String("link", rec.Link),
		zap.Int("items", len(items)),
	)
	return toMemberDetailResponse(member, s.source), nil
}

// ═══════════════════════════════════════════════════════════
// 手动编辑
// ═══════════════════════════════════════════════════════════

func (s *gearService) SetItemAcquired(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string) (*dto.GearItemResponse, error) {
	return s.setFlag(ctx, memberID, slot, req, callerID, callerRole, false)
}

func (s *gearService) SetUpgradeAcquired(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string) (*dto.GearItemResponse, error) {
	return s.setFlag(ctx, memberID, slot, req, callerID, callerRole, true)
}

// setFlag 切换获取/强化标记，并维护手动编辑账本条目
//   - 置为 true：当前周存在且无覆盖同一（成员, 槽位, 配装, 周）的未撤销手动编辑时新建一条
//   - 置为 false：存在对应的未撤销手动编辑则将其标记为撤销
func (s *gearService) setFlag(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string, upgrade bool) (*dto.GearItemResponse, error) {
	spec := model.SpecType(req.SpecType)
	if !spec.IsGearSpec() {
		return nil, ErrInvalidSpecType
	}
	if !slot.IsValid() {
		return nil, ErrInvalidSlot
	}
	if req.Value == nil {
		return nil, ErrMissingValue
	}
	value := *req.Value
	if !canEditGear(callerID, callerRole, memberID) {
		return nil, ErrNoPermission
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	member, err := findMember(ctx, s.repo, memberID)
	if err != nil {
		return nil, err
	}

	rec := member.Record(spec)
	i, ok := rec.Items.Find(slot)
	if !ok {
		return nil, ErrNoMatchingItem
	}
	item := &rec.Items[i]
	var previous bool
	if upgrade {
		if item.ItemType != model.ItemTypeAugmentedTome {
			return nil, ErrNotUpgradable
		}
		previous = item.UpgradeMaterialAcquired
		item.UpgradeMaterialAcquired = value
	} else {
		previous = item.IsAcquired
		item.IsAcquired = value
	}
	updated := *item
	rec.RememberItems()
	member.ApplyRecord(spec, rec)

	week, err := s.repo.Week.GetCurrent(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Member.Update(ctx, member); err != nil {
			return persistErr(err)
		}
		// 值未变化不记账
		if week == nil || previous == value {
			return nil
		}
		return s.trackManualEdit(ctx, txRepo, week.WeekNumber, member.MemberID, slot, spec, upgrade, value, updated.ItemType, callerID)
	})
	if err != nil {
		s.logger.Error("保存手动编辑失败",
			zap.String("member_id", memberID),
			zap.String("slot", string(slot)),
			zap.Error(err),
		)
		return nil, err
	}

	resp := toGearItemResponse(updated)
	return &resp, nil
}

func (s *gearService) trackManualEdit(
	ctx context.Context,
	txRepo *repository.Repository,
	weekNumber int,
	memberID string,
	slot model.GearSlot,
	spec model.SpecType,
	upgrade, value bool,
	itemType model.ItemType,
	callerID string,
) error {
	existing, err := txRepo.Assignment.FindActiveManualEdit(ctx, weekNumber, memberID, slot, upgrade, spec)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if !value {
		if existing == nil {
			return nil
		}
		return txRepo.Assignment.MarkUndone(ctx, existing.AssignmentID)
	}

	if existing != nil {
		return nil
	}

	slotCopy := slot
	entry := &model.LootAssignment{
		WeekNumber:        weekNumber,
		FloorNumber:       model.ManualEditFloor,
		MemberID:          memberID,
		Slot:              &slotCopy,
		IsUpgradeMaterial: upgrade,
		IsArmorMaterial:   upgrade && model.MaterialForSlot(slot) == model.MaterialArmor,
		SpecType:          spec,
		AssignedAt:        s.now(),
		IsManualEdit:      true,
		ItemType:          &itemType,
	}
	if callerID != "" {
		entry.AssignedBy = &callerID
	}
	return txRepo.Assignment.Create(ctx, entry)
}
