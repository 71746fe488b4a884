package service

import (
	"go.uber.org/zap"

	"raid-loot/backend/internal/repository"
	"raid-loot/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth   AuthService
	Member MemberService
	Gear   GearService
	Loot   LootService
	Week   WeekService
	Export ExportService
}

// NewService 创建 Service 聚合
// locker 为全局写锁：启用 Redis 时为分布式锁，否则为进程内锁
func NewService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	locker WriteLocker,
	source GearListSource,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:   NewAuthService(repo, jwtMgr, blacklist, logger),
		Member: NewMemberService(repo, source, logger),
		Gear:   NewGearService(repo, source, locker, logger),
		Loot:   NewLootService(repo, locker, logger),
		Week:   NewWeekService(repo, locker, logger),
		Export: NewExportService(repo, logger),
	}
}
