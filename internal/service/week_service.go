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

// ── 周次模块业务错误 ──

var (
	ErrWeekExists = errors.New("周次已存在")
)

// WeekService 周次业务接口
type WeekService interface {
	Create(ctx context.Context, req *dto.CreateWeekRequest) (*dto.WeekResponse, error)
	List(ctx context.Context) ([]dto.WeekResponse, error)
	GetCurrent(ctx context.Context) (*dto.WeekResponse, error)
	SetCurrent(ctx context.Context, weekNumber int) (*dto.WeekResponse, error)
	// Delete 回滚该周全部未撤销分配对配装的修改，再物理删除分配与周次
	Delete(ctx context.Context, weekNumber int) (*dto.DeleteWeekResponse, error)
}

type weekService struct {
	repo   *repository.Repository
	locker WriteLocker
	now    func() time.Time
	logger *zap.Logger
}

// NewWeekService 创建 WeekService 实例
func NewWeekService(repo *repository.Repository, locker WriteLocker, logger *zap.Logger) WeekService {
	return &weekService{
		repo:   repo,
		locker: locker,
		now:    time.Now,
		logger: logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *weekService) Create(ctx context.Context, req *dto.CreateWeekRequest) (*dto.WeekResponse, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	number := 0
	if req.WeekNumber != nil {
		number = *req.WeekNumber
		if _, err := s.repo.Week.GetByNumber(ctx, number); err == nil {
			return nil, ErrWeekExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	} else {
		max, err := s.repo.Week.MaxNumber(ctx)
		if err != nil {
			return nil, err
		}
		number = max + 1
	}

	week := &model.Week{WeekNumber: number, StartedAt: s.now(), IsCurrent: req.MakeCurrent}
	if req.StartedAt != nil {
		week.StartedAt = *req.StartedAt
	}

	// 设为当前周时需先清除其他周的标记，保证至多一个当前周
	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		if week.IsCurrent {
			if err := txRepo.Week.ClearCurrent(ctx); err != nil {
				return err
			}
		}
		return txRepo.Week.Create(ctx, week)
	})
	if err != nil {
		s.logger.Error("创建周次失败", zap.Int("week", number), zap.Error(err))
		return nil, err
	}

	return toWeekResponse(week), nil
}

// ────────────────────── List / GetCurrent ──────────────────────

func (s *weekService) List(ctx context.Context) ([]dto.WeekResponse, error) {
	weeks, err := s.repo.Week.List(ctx)
	if err != nil {
		s.logger.Error("查询周次列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.WeekResponse, 0, len(weeks))
	for i := range weeks {
		out = append(out, *toWeekResponse(&weeks[i]))
	}
	return out, nil
}

func (s *weekService) GetCurrent(ctx context.Context) (*dto.WeekResponse, error) {
	week, err := s.repo.Week.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWeekNotFound
		}
		return nil, err
	}
	return toWeekResponse(week), nil
}

// ────────────────────── SetCurrent ──────────────────────

func (s *weekService) SetCurrent(ctx context.Context, weekNumber int) (*dto.WeekResponse, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	week, err := s.repo.Week.GetByNumber(ctx, weekNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWeekNotFound
		}
		return nil, err
	}

	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Week.ClearCurrent(ctx); err != nil {
			return err
		}
		return txRepo.Week.SetCurrent(ctx, weekNumber)
	})
	if err != nil {
		s.logger.Error("设置当前周失败", zap.Int("week", weekNumber), zap.Error(err))
		return nil, err
	}

	week.IsCurrent = true
	return toWeekResponse(week), nil
}

// ═══════════════════════════════════════════════════════════
// Delete — 删除周次并回滚其分配
// ═══════════════════════════════════════════════════════════
//
// 步骤：
//  1. 逐条回滚未撤销分配（含手动编辑），同一成员只读写一次
//  2. 配装中已无对应条目的分配跳过并记录日志
//  3. 事务内：写回成员 → 删除分配 → 删除周次 → 必要时将最新剩余周设为当前周

func (s *weekService) Delete(ctx context.Context, weekNumber int) (*dto.DeleteWeekResponse, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	week, err := s.repo.Week.GetByNumber(ctx, weekNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWeekNotFound
		}
		return nil, err
	}

	entries, _, err := s.repo.Assignment.List(ctx, repository.AssignmentFilter{WeekNumber: &weekNumber})
	if err != nil {
		s.logger.Error("查询周次分配失败", zap.Int("week", weekNumber), zap.Error(err))
		return nil, err
	}

	resp := &dto.DeleteWeekResponse{WeekNumber: weekNumber}
	members := make(map[string]*model.Member)
	var touched []*model.Member

	for i := range entries {
		entry := &entries[i]
		if !entry.SpecType.IsGearSpec() {
			resp.Reverted++
			continue
		}

		member, ok := members[entry.MemberID]
		if !ok {
			member, err = findMember(ctx, s.repo, entry.MemberID)
			if errors.Is(err, ErrMemberNotFound) {
				members[entry.MemberID] = nil
			} else if err != nil {
				return nil, err
			} else {
				members[entry.MemberID] = member
				touched = append(touched, member)
			}
		}
		if member == nil {
			s.logger.Warn("回滚分配时成员已不存在",
				zap.String("assignment_id", entry.AssignmentID),
				zap.String("member_id", entry.MemberID),
			)
			resp.Skipped++
			continue
		}

		if err := revertAssignment(member, entry); err != nil {
			if errors.Is(err, ErrNoMatchingItem) {
				s.logger.Warn("回滚分配时配装中无对应条目，已跳过",
					zap.String("assignment_id", entry.AssignmentID),
					zap.String("member_id", entry.MemberID),
				)
				resp.Skipped++
				continue
			}
			return nil, err
		}
		resp.Reverted++
	}

	err = s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
		for _, m := range touched {
			if err := txRepo.Member.Update(ctx, m); err != nil {
				return persistErr(err)
			}
		}
		if err := txRepo.Assignment.DeleteByWeek(ctx, weekNumber); err != nil {
			return err
		}
		if err := txRepo.Week.Delete(ctx, weekNumber); err != nil {
			return err
		}

		if !week.IsCurrent {
			current, err := txRepo.Week.GetCurrent(ctx)
			if err == nil {
				resp.CurrentWeek = &current.WeekNumber
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return nil
		}

		latest, err := txRepo.Week.GetLatest(ctx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := txRepo.Week.SetCurrent(ctx, latest.WeekNumber); err != nil {
			return err
		}
		resp.CurrentWeek = &latest.WeekNumber
		return nil
	})
	if err != nil {
		s.logger.Error("删除周次失败", zap.Int("week", weekNumber), zap.Error(err))
		return nil, err
	}

	s.logger.Info("周次已删除",
		zap.Int("week", weekNumber),
		zap.Int("reverted", resp.Reverted),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// toWeekResponse 将 model.Week 转换为 dto.WeekResponse
func toWeekResponse(w *model.Week) *dto.WeekResponse {
	return &dto.WeekResponse{
		WeekNumber: w.WeekNumber,
		StartedAt:  w.StartedAt,
		IsCurrent:  w.IsCurrent,
	}
}
