package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

var gearErrCodes = []errCode{
	{service.ErrInvalidLink, 13001},
	{service.ErrUpstreamFailure, 13002},
	{service.ErrNotUpgradable, 13003},
	{service.ErrMissingValue, 13004},
	{service.ErrInvalidSpecType, 13005},
	{service.ErrInvalidSlot, 13006},
	{service.ErrMemberNotFound, 13007},
}

// GearHandler 配装 HTTP 处理器
type GearHandler struct {
	gearSvc service.GearService
}

// NewGearHandler 创建 GearHandler
func NewGearHandler(gearSvc service.GearService) *GearHandler {
	return &GearHandler{gearSvc: gearSvc}
}

// Import 从外部清单导入主职或副职配装
// POST /api/v1/members/:id/gear/import
func (h *GearHandler) Import(c *gin.Context) {
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ImportGearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	member, err := h.gearSvc.Import(c.Request.Context(), c.Param("id"), &req, callerID, role)
	if err != nil {
		h.handleGearError(c, err)
		return
	}

	response.OK(c, member)
}

// SetAcquired 手动切换已获取
// PUT /api/v1/members/:id/gear/:slot/acquired
func (h *GearHandler) SetAcquired(c *gin.Context) {
	h.setFlag(c, h.gearSvc.SetItemAcquired)
}

// SetUpgrade 手动切换强化材料已获取
// PUT /api/v1/members/:id/gear/:slot/upgrade
func (h *GearHandler) SetUpgrade(c *gin.Context) {
	h.setFlag(c, h.gearSvc.SetUpgradeAcquired)
}

type gearFlagFunc func(ctx context.Context, memberID string, slot model.GearSlot, req *dto.SetGearFlagRequest, callerID, callerRole string) (*dto.GearItemResponse, error)

func (h *GearHandler) setFlag(c *gin.Context, fn gearFlagFunc) {
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.SetGearFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	item, err := fn(c.Request.Context(), c.Param("id"), model.GearSlot(c.Param("slot")), &req, callerID, role)
	if err != nil {
		h.handleGearError(c, err)
		return
	}

	response.OK(c, item)
}

func (h *GearHandler) handleGearError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, gearErrCodes, 13000))
}
