package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/repository"
	pkgerrors "raid-loot/backend/pkg/errors"
)

// ── 战利品模块业务错误 ──

var (
	ErrInvalidFloor       = errors.New("层号必须在 1-4 之间")
	ErrInvalidDrop        = errors.New("必须且只能指定槽位或强化材料之一")
	ErrDropNotOnFloor     = errors.New("该层不掉落此物品")
	ErrNoCurrentWeek      = errors.New("当前没有进行中的周次")
	ErrAlreadyAssigned    = errors.New("本周该层此物品已分配")
	ErrAssignmentNotFound = errors.New("分配记录不存在")
	ErrAlreadyUndone      = errors.New("分配记录已撤销")
)

// LootService 战利品分配业务接口
type LootService interface {
	GetEligibility(ctx context.Context, req *dto.EligibilityRequest) (*dto.EligibilityResponse, error)
	Assign(ctx context.Context, req *dto.AssignRequest, callerID string) (*dto.AssignmentResponse, error)
	Undo(ctx context.Context, assignmentID string) (*dto.AssignmentResponse, error)
	GetExtraCounts(ctx context.Context, req *dto.DropRequest) ([]dto.ExtraCountResponse, error)
	ListAssignments(ctx context.Context, req *dto.AssignmentListRequest) ([]dto.AssignmentResponse, int64, error)
}

type lootService struct {
	repo   *repository.Repository
	locker WriteLocker
	now    func() time.Time
	logger *zap.Logger
}

// NewLootService 创建 LootService 实例
func NewLootService(repo *repository.Repository, locker WriteLocker, logger *zap.Logger) LootService {
	return &lootService{
		repo:   repo,
		locker: locker,
		now:    time.Now,
		logger: logger,
	}
}

// ═══════════════════════════════════════════════════════════
// GetEligibility — 资格表（只读，不加锁）
// ═══════════════════════════════════════════════════════════

func (s *lootService) GetEligibility(ctx context.Context, req *dto.EligibilityRequest) (*dto.EligibilityResponse, error) {
	if req.Floor < 1 || req.Floor > model.FloorCount {
		return nil, ErrInvalidFloor
	}

	// 1. 确定周次：未指定时取当前周，没有当前周则不报告分配状态
	weekNumber := 0
	if req.Week != nil {
		if _, err := s.repo.Week.GetByNumber(ctx, *req.Week); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrWeekNotFound
			}
			return nil, err
		}
		weekNumber = *req.Week
	} else {
		week, err := s.repo.Week.GetCurrent(ctx)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if week != nil {
			weekNumber = week.WeekNumber
		}
	}

	// 2. 计算资格
	members, err := s.repo.Member.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询成员名单失败", zap.Error(err))
		return nil, err
	}
	results := ResolveFloor(members, req.Floor)

	// 3. 叠加本周本层已有的分配
	assigned := make(map[string]*model.LootAssignment)
	if weekNumber > 0 {
		active, err := s.repo.Assignment.ListActiveByFloor(ctx, weekNumber, req.Floor)
		if err != nil {
			s.logger.Error("查询分配记录失败", zap.Error(err))
			return nil, err
		}
		for i := range active {
			assigned[active[i].DropKey()] = &active[i]
		}
	}
	names := make(map[string]string, len(members))
	for i := range members {
		names[members[i].MemberID] = members[i].Name
	}

	resp := &dto.EligibilityResponse{
		WeekNumber:  weekNumber,
		FloorNumber: req.Floor,
		Drops:       make([]dto.DropEligibilityResponse, 0, len(results)),
	}
	for _, r := range results {
		d := dto.DropEligibilityResponse{
			Slot:       string(r.Drop.Slot),
			Material:   string(r.Drop.Material),
			SpecType:   string(r.SpecType),
			Candidates: make([]dto.CandidateResponse, 0, len(r.Candidates)),
		}
		for _, c := range r.Candidates {
			d.Candidates = append(d.Candidates, dto.CandidateResponse{
				MemberID:    c.MemberID,
				Name:        c.Name,
				NeededCount: c.NeededCount,
				SpecType:    string(c.SpecType),
			})
		}
		if a, ok := assigned[r.Drop.Key()]; ok {
			ar := toAssignmentResponse(a)
			ar.MemberName = names[a.MemberID]
			d.Assigned = ar
		}
		resp.Drops = append(resp.Drops, d)
	}
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// Assign — 分配一件掉落
// ═══════════════════════════════════════════════════════════
//
// 前置条件：存在当前周；同周同层同一掉落不存在未撤销的分配（至多一次）。
// 主职/副职分配同时修改成员配装，实际修改的槽位写入账本（戒指可能与请求不同）。
// Extra 分配仅写账本。

func (s *lootService) Assign(ctx context.Context, req *dto.AssignRequest, callerID string) (*dto.AssignmentResponse, error) {
	// 1. 参数校验
	if req.FloorNumber < 1 || req.FloorNumber > model.FloorCount {
		return nil, ErrInvalidFloor
	}
	spec := model.SpecType(req.SpecType)
	if !spec.IsValid() {
		return nil, ErrInvalidSpecType
	}
	drop, err := parseDrop(&req.DropRequest)
	if err != nil {
		return nil, err
	}
	if !model.FloorHasDrop(req.FloorNumber, drop) {
		return nil, ErrDropNotOnFloor
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 2. 当前周
	week, err := s.repo.Week.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentWeek
		}
		return nil, err
	}

	// 3. 成员
	member, err := findMember(ctx, s.repo, req.MemberID)
	if err != nil {
		return nil, err
	}

	// 4. 至多一次
	active, err := s.repo.Assignment.ListActiveByFloor(ctx, week.WeekNumber, req.FloorNumber)
	if err != nil {
		s.logger.Error("查询分配记录失败", zap.Error(err))
		return nil, err
	}
	for i := range active {
		if active[i].DropKey() == drop.Key() {
			return nil, ErrAlreadyAssigned
		}
	}

	// 5. 修改配装
	entry := &model.LootAssignment{
		WeekNumber:        week.WeekNumber,
		FloorNumber:       req.FloorNumber,
		MemberID:          member.MemberID,
		IsUpgradeMaterial: drop.IsMaterial(),
		IsArmorMaterial:   drop.Material == model.MaterialArmor,
		SpecType:          spec,
		AssignedAt:        s.now(),
	}
	if callerID != "" {
		entry.AssignedBy = &callerID
	}

	if spec.IsGearSpec() {
		rec := member.Record(spec)
		if drop.IsMaterial() {
			if _, err := applyMaterial(&rec, drop.Material); err != nil {
				return nil, err
			}
		} else {
			slot, err := acquireSlot(&rec, drop.Slot)
			if err != nil {
				return nil, err
			}
			entry.Slot = &slot
		}
		rec.RememberItems()
		member.ApplyRecord(spec, rec)
	} else if !drop.IsMaterial() {
		slot := drop.Slot
		if slot == model.SlotRing {
			slot = model.SlotLeftRing
		}
		entry.Slot = &slot
	}

	// 6. 配装与账本同一事务提交
	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		if spec.IsGearSpec() {
			if err := txRepo.Member.Update(ctx, member); err != nil {
				return persistErr(err)
			}
		}
		return persistErr(txRepo.Assignment.Create(ctx, entry))
	})
	if err != nil {
		s.logger.Error("保存分配失败", zap.String("member_id", member.MemberID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("分配完成",
		zap.Int("week", entry.WeekNumber),
		zap.Int("floor", entry.FloorNumber),
		zap.String("drop", drop.Key()),
		zap.String("member_id", member.MemberID),
		zap.String("spec", string(spec)),
	)

	resp := toAssignmentResponse(entry)
	resp.MemberName = member.Name
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// Undo — 撤销分配
// ═══════════════════════════════════════════════════════════

func (s *lootService) Undo(ctx context.Context, assignmentID string) (*dto.AssignmentResponse, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if entry.IsUndone {
		return nil, ErrAlreadyUndone
	}

	var member *model.Member
	if entry.SpecType.IsGearSpec() {
		member, err = findMember(ctx, s.repo, entry.MemberID)
		switch {
		case errors.Is(err, ErrMemberNotFound):
			// 成员已删除，只翻转账本
			s.logger.Warn("撤销分配时成员已不存在", zap.String("member_id", entry.MemberID))
			member = nil
		case err != nil:
			return nil, err
		default:
			if err := revertAssignment(member, entry); err != nil {
				return nil, err
			}
		}
	}

	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		if member != nil {
			if err := txRepo.Member.Update(ctx, member); err != nil {
				return persistErr(err)
			}
		}
		if err := txRepo.Assignment.MarkUndone(ctx, entry.AssignmentID); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrAlreadyUndone
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("撤销分配失败", zap.String("id", assignmentID), zap.Error(err))
		return nil, err
	}

	entry.IsUndone = true
	resp := toAssignmentResponse(entry)
	if member != nil {
		resp.MemberName = member.Name
	}
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// GetExtraCounts — 各成员以 Extra 方式获得某掉落的次数
// ═══════════════════════════════════════════════════════════

func (s *lootService) GetExtraCounts(ctx context.Context, req *dto.DropRequest) ([]dto.ExtraCountResponse, error) {
	drop, err := parseDrop(req)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.Assignment.ListActiveExtra(ctx)
	if err != nil {
		s.logger.Error("查询 Extra 分配失败", zap.Error(err))
		return nil, err
	}

	counts := make(map[string]int)
	for i := range entries {
		if entries[i].DropKey() == drop.Key() {
			counts[entries[i].MemberID]++
		}
	}
	if len(counts) == 0 {
		return []dto.ExtraCountResponse{}, nil
	}

	members, err := s.repo.Member.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for i := range members {
		names[members[i].MemberID] = members[i].Name
	}

	out := make([]dto.ExtraCountResponse, 0, len(counts))
	for id, n := range counts {
		out = append(out, dto.ExtraCountResponse{MemberID: id, Name: names[id], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ═══════════════════════════════════════════════════════════
// ListAssignments — 账本浏览
// ═══════════════════════════════════════════════════════════

func (s *lootService) ListAssignments(ctx context.Context, req *dto.AssignmentListRequest) ([]dto.AssignmentResponse, int64, error) {
	list, total, err := s.repo.Assignment.List(ctx, repository.AssignmentFilter{
		WeekNumber:    req.Week,
		MemberID:      req.MemberID,
		IncludeUndone: req.IncludeUndone,
		Offset:        req.GetOffset(),
		Limit:         req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("查询分配记录失败", zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		out = append(out, *toAssignmentResponse(&list[i]))
	}
	return out, total, nil
}

// ── 内部辅助方法 ──

// parseDrop 校验并规范化槽位/材料描述（左右戒指归并为 Ring）
func parseDrop(req *dto.DropRequest) (model.DropDescriptor, error) {
	hasSlot, hasMaterial := req.Slot != "", req.Material != ""
	if hasSlot == hasMaterial {
		return model.DropDescriptor{}, ErrInvalidDrop
	}
	if hasMaterial {
		m := model.MaterialType(req.Material)
		if !m.IsValid() {
			return model.DropDescriptor{}, ErrInvalidDrop
		}
		return model.DropDescriptor{Material: m}, nil
	}

	slot := model.GearSlot(req.Slot)
	if slot.IsRing() {
		return model.DropDescriptor{Slot: model.SlotRing}, nil
	}
	if !slot.IsValid() {
		return model.DropDescriptor{}, ErrInvalidSlot
	}
	return model.DropDescriptor{Slot: slot}, nil
}

// toAssignmentResponse 将 model.LootAssignment 转换为 dto.AssignmentResponse
func toAssignmentResponse(a *model.LootAssignment) *dto.AssignmentResponse {
	resp := &dto.AssignmentResponse{
		ID:                a.AssignmentID,
		WeekNumber:        a.WeekNumber,
		FloorNumber:       a.FloorNumber,
		MemberID:          a.MemberID,
		IsUpgradeMaterial: a.IsUpgradeMaterial,
		Material:          string(a.Material()),
		SpecType:          string(a.SpecType),
		AssignedAt:        a.AssignedAt,
		IsUndone:          a.IsUndone,
		IsManualEdit:      a.IsManualEdit,
	}
	if a.Slot != nil {
		slot := string(*a.Slot)
		resp.Slot = &slot
	}
	if a.ItemType != nil {
		t := string(*a.ItemType)
		resp.ItemType = &t
	}
	if a.Member != nil {
		resp.MemberName = a.Member.Name
	}
	return resp
}
