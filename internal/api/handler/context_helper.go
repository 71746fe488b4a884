package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"raid-loot/backend/pkg/response"
)

// 上下文键，由 JWTAuth 中间件注入
const (
	CtxMemberID = "member_id"
	CtxRole     = "role"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// MustGetMemberID 从 Gin 上下文中安全提取 member_id。
// 如果 JWT 中间件未正确注入 member_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetMemberID(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxMemberID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, CtxRole)
}

// MustGetCaller 同时提取 member_id 与 role
func MustGetCaller(c *gin.Context) (memberID, role string, ok bool) {
	if memberID, ok = MustGetMemberID(c); !ok {
		return "", "", false
	}
	if role, ok = MustGetRole(c); !ok {
		return "", "", false
	}
	return memberID, role, true
}

// MustGetToken 提取当前 Access Token 的 jti 与过期时间（登出用）
func MustGetToken(c *gin.Context) (string, time.Time, bool) {
	jti, ok := mustGetString(c, CtxTokenJTI)
	if !ok {
		return "", time.Time{}, false
	}
	v, exists := c.Get(CtxTokenExp)
	exp, isTime := v.(time.Time)
	if !exists || !isTime {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	return jti, exp, true
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
