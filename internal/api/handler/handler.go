package handler

import "raid-loot/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth   *AuthHandler
	Member *MemberHandler
	Gear   *GearHandler
	Loot   *LootHandler
	Week   *WeekHandler
	Export *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:   NewAuthHandler(svc.Auth),
		Member: NewMemberHandler(svc.Member),
		Gear:   NewGearHandler(svc.Gear),
		Loot:   NewLootHandler(svc.Loot),
		Week:   NewWeekHandler(svc.Week),
		Export: NewExportHandler(svc.Export),
	}
}
