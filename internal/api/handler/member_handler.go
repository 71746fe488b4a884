package handler

import (
	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

var memberErrCodes = []errCode{
	{service.ErrMemberNotFound, 12001},
	{service.ErrMemberNameExists, 12002},
	{service.ErrInvalidPIN, 12003},
	{service.ErrInvalidRole, 12004},
	{service.ErrMemberSelfDelete, 12005},
	{service.ErrImportFileFormat, 12006},
}

// MemberHandler 成员名单 HTTP 处理器
type MemberHandler struct {
	memberSvc service.MemberService
}

// NewMemberHandler 创建 MemberHandler
func NewMemberHandler(memberSvc service.MemberService) *MemberHandler {
	return &MemberHandler{memberSvc: memberSvc}
}

// List 成员列表
// GET /api/v1/members
func (h *MemberHandler) List(c *gin.Context) {
	var req dto.MemberListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	members, total, err := h.memberSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OKPage(c, members, total, req.GetPage(), req.GetPageSize())
}

// Get 成员详情（含两套配装）
// GET /api/v1/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.memberSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OK(c, member)
}

// Create 新增成员
// POST /api/v1/members
func (h *MemberHandler) Create(c *gin.Context) {
	var req dto.CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	member, err := h.memberSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.Created(c, member)
}

// Update 修改成员名、角色或 PIN
// PUT /api/v1/members/:id
func (h *MemberHandler) Update(c *gin.Context) {
	var req dto.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	member, err := h.memberSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OK(c, member)
}

// Delete 删除成员
// DELETE /api/v1/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	if err := h.memberSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OK(c, nil)
}

// ResetPIN 重置 PIN，返回新 PIN（仅此一次可见）
// POST /api/v1/members/:id/reset-pin
func (h *MemberHandler) ResetPIN(c *gin.Context) {
	pin, err := h.memberSvc.ResetPIN(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OK(c, gin.H{"pin": pin})
}

// Import 从 Excel 批量导入成员
// POST /api/v1/members/import
func (h *MemberHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "请上传 Excel 文件")
		return
	}
	defer file.Close()

	rows, err := h.memberSvc.ParseImportFile(file)
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	result, err := h.memberSvc.ImportMembers(c.Request.Context(), rows)
	if err != nil {
		h.handleMemberError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *MemberHandler) handleMemberError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, memberErrCodes, 12000))
}
