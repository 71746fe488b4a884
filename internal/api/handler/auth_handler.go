package handler

import (
	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

var authErrCodes = []errCode{
	{service.ErrInvalidCredentials, 11001},
	{service.ErrMemberNotFound, 11002},
}

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login 成员名 + PIN 登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 登出，当前 Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp, ok := MustGetToken(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, nil)
}

// Me 当前登录成员
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	memberID, ok := MustGetMemberID(c)
	if !ok {
		return
	}

	me, err := h.authSvc.Me(c.Request.Context(), memberID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, me)
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, authErrCodes, 11000))
}
