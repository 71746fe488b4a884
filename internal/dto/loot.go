package dto

// ── 战利品模块 DTO ──

// EligibilityRequest 资格查询参数
type EligibilityRequest struct {
	Floor int  `form:"floor" binding:"required,min=1,max=4"`
	Week  *int `form:"week"  binding:"omitempty,min=1"`
}

// DropRequest 槽位或材料二选一
type DropRequest struct {
	Slot     string `json:"slot"     form:"slot"     binding:"omitempty,max=20"`
	Material string `json:"material" form:"material" binding:"omitempty,oneof=armor accessory"`
}

// AssignRequest 分配请求
type AssignRequest struct {
	DropRequest
	FloorNumber int    `json:"floor_number" binding:"required,min=1,max=4"`
	MemberID    string `json:"member_id"    binding:"required"`
	SpecType    string `json:"spec_type"    binding:"required,oneof=main_spec off_spec extra"`
}

// AssignmentListRequest 分配记录查询参数
type AssignmentListRequest struct {
	PaginationRequest
	Week          *int   `form:"week"           binding:"omitempty,min=1"`
	MemberID      string `form:"member_id"`
	IncludeUndone bool   `form:"include_undone"`
}
