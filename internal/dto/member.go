package dto

// ── 成员模块 DTO ──

// CreateMemberRequest 创建成员请求
type CreateMemberRequest struct {
	Name string `json:"name" binding:"required,min=1,max=50"`
	Role string `json:"role" binding:"omitempty,oneof=admin manager member"`
	PIN  string `json:"pin"  binding:"required,len=4,numeric"`
}

// UpdateMemberRequest 更新成员请求
type UpdateMemberRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=50"`
	Role *string `json:"role" binding:"omitempty,oneof=admin manager member"`
	PIN  *string `json:"pin"  binding:"omitempty,len=4,numeric"`
}

// MemberListRequest 成员列表查询参数
type MemberListRequest struct {
	PaginationRequest
}
