package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求（成员名 + 4 位 PIN）
type LoginRequest struct {
	Name string `json:"name" binding:"required,max=50"`
	PIN  string `json:"pin"  binding:"required,len=4,numeric"`
}
