package handler

import (
	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

var lootErrCodes = []errCode{
	{service.ErrInvalidFloor, 14001},
	{service.ErrInvalidDrop, 14002},
	{service.ErrDropNotOnFloor, 14003},
	{service.ErrNoCurrentWeek, 14004},
	{service.ErrAlreadyAssigned, 14005},
	{service.ErrAssignmentNotFound, 14006},
	{service.ErrAlreadyUndone, 14007},
	{service.ErrNoMatchingItem, 14008},
	{service.ErrMemberNotFound, 14009},
	{service.ErrWeekNotFound, 14010},
	{service.ErrInvalidSpecType, 14011},
	{service.ErrInvalidSlot, 14012},
}

// LootHandler 战利品分配 HTTP 处理器
type LootHandler struct {
	lootSvc service.LootService
}

// NewLootHandler 创建 LootHandler
func NewLootHandler(lootSvc service.LootService) *LootHandler {
	return &LootHandler{lootSvc: lootSvc}
}

// Eligibility 某层的资格表（缺省为当前周）
// GET /api/v1/loot/eligibility?floor=1&week=3
func (h *LootHandler) Eligibility(c *gin.Context) {
	var req dto.EligibilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.lootSvc.GetEligibility(c.Request.Context(), &req)
	if err != nil {
		h.handleLootError(c, err)
		return
	}

	response.OK(c, result)
}

// Assign 分配一件掉落
// POST /api/v1/loot/assignments
func (h *LootHandler) Assign(c *gin.Context) {
	callerID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.lootSvc.Assign(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleLootError(c, err)
		return
	}

	response.Created(c, result)
}

// Undo 撤销一条分配记录
// POST /api/v1/loot/assignments/:id/undo
func (h *LootHandler) Undo(c *gin.Context) {
	result, err := h.lootSvc.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleLootError(c, err)
		return
	}

	response.OK(c, result)
}

// ExtraCounts 各成员以 Extra 方式获得某掉落的次数
// GET /api/v1/loot/extra-counts?slot=Weapon
func (h *LootHandler) ExtraCounts(c *gin.Context) {
	var req dto.DropRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	counts, err := h.lootSvc.GetExtraCounts(c.Request.Context(), &req)
	if err != nil {
		h.handleLootError(c, err)
		return
	}

	response.OK(c, counts)
}

// ListAssignments 分配记录
// GET /api/v1/loot/assignments?week=3&member_id=xxx&include_undone=true
func (h *LootHandler) ListAssignments(c *gin.Context) {
	var req dto.AssignmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.lootSvc.ListAssignments(c.Request.Context(), &req)
	if err != nil {
		h.handleLootError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

func (h *LootHandler) handleLootError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, lootErrCodes, 14000))
}
