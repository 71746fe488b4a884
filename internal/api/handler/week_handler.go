package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

var weekErrCodes = []errCode{
	{service.ErrWeekNotFound, 15001},
	{service.ErrWeekExists, 15002},
}

// WeekHandler 周次 HTTP 处理器
type WeekHandler struct {
	weekSvc service.WeekService
}

// NewWeekHandler 创建 WeekHandler
func NewWeekHandler(weekSvc service.WeekService) *WeekHandler {
	return &WeekHandler{weekSvc: weekSvc}
}

// List 全部周次（倒序）
// GET /api/v1/weeks
func (h *WeekHandler) List(c *gin.Context) {
	weeks, err := h.weekSvc.List(c.Request.Context())
	if err != nil {
		h.handleWeekError(c, err)
		return
	}

	response.OK(c, weeks)
}

// Current 当前周次
// GET /api/v1/weeks/current
func (h *WeekHandler) Current(c *gin.Context) {
	week, err := h.weekSvc.GetCurrent(c.Request.Context())
	if err != nil {
		h.handleWeekError(c, err)
		return
	}

	response.OK(c, week)
}

// Create 开始新的周次
// POST /api/v1/weeks
func (h *WeekHandler) Create(c *gin.Context) {
	var req dto.CreateWeekRequest
	// 请求体可为空，此时使用默认周次号
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	week, err := h.weekSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleWeekError(c, err)
		return
	}

	response.Created(c, week)
}

// SetCurrent 切换当前周次
// PUT /api/v1/weeks/:number/current
func (h *WeekHandler) SetCurrent(c *gin.Context) {
	number, ok := weekNumberParam(c)
	if !ok {
		return
	}

	week, err := h.weekSvc.SetCurrent(c.Request.Context(), number)
	if err != nil {
		h.handleWeekError(c, err)
		return
	}

	response.OK(c, week)
}

// Delete 删除周次并回滚其分配
// DELETE /api/v1/weeks/:number
func (h *WeekHandler) Delete(c *gin.Context) {
	number, ok := weekNumberParam(c)
	if !ok {
		return
	}

	result, err := h.weekSvc.Delete(c.Request.Context(), number)
	if err != nil {
		h.handleWeekError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *WeekHandler) handleWeekError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, weekErrCodes, 15000))
}

// weekNumberParam 解析路径中的周次号
func weekNumberParam(c *gin.Context) (int, bool) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		response.BadRequest(c, 10001, "周次号无效")
		return 0, false
	}
	return number, true
}
