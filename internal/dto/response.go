package dto

import "time"

// ── 认证模块响应 ──

// TokenResponse Token 响应
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int            `json:"expires_in"` // Access Token 有效期（秒）
	Member      MemberResponse `json:"member"`
}

// ── 成员模块响应 ──

// MemberResponse 成员信息（脱敏）
type MemberResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// MemberDetailResponse 成员详情，含主职/副职配装
type MemberDetailResponse struct {
	MemberResponse
	MainSpec  GearRecordResponse `json:"main_spec"`
	OffSpec   GearRecordResponse `json:"off_spec"`
	Version   int                `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// GearRecordResponse 一套配装
type GearRecordResponse struct {
	Link    string             `json:"link"`
	LinkURL string             `json:"link_url,omitempty"`
	Items   []GearItemResponse `json:"items"`
}

// GearItemResponse 单个槽位
type GearItemResponse struct {
	Slot                    string `json:"slot"`
	ItemName                string `json:"item_name"`
	ItemType                string `json:"item_type"`
	IsAcquired              bool   `json:"is_acquired"`
	UpgradeMaterialAcquired bool   `json:"upgrade_material_acquired"`
}

// ImportMemberResponse 批量导入成员响应
type ImportMemberResponse struct {
	Total   int                 `json:"total"`
	Success int                 `json:"success"`
	Failed  int                 `json:"failed"`
	Errors  []ImportMemberError `json:"errors,omitempty"`
}

// ImportMemberError 导入错误详情
type ImportMemberError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ── 战利品模块响应 ──

// EligibilityResponse 某周某层的资格表
type EligibilityResponse struct {
	WeekNumber  int                       `json:"week_number"` // 0 表示当前无进行中的周次
	FloorNumber int                       `json:"floor_number"`
	Drops       []DropEligibilityResponse `json:"drops"`
}

// DropEligibilityResponse 单个槽位/材料的资格
type DropEligibilityResponse struct {
	Slot       string              `json:"slot,omitempty"`
	Material   string              `json:"material,omitempty"`
	SpecType   string              `json:"spec_type"`
	Candidates []CandidateResponse `json:"candidates"`
	Assigned   *AssignmentResponse `json:"assigned,omitempty"`
}

// CandidateResponse 有资格的成员
type CandidateResponse struct {
	MemberID    string `json:"member_id"`
	Name        string `json:"name"`
	NeededCount int    `json:"needed_count"`
	SpecType    string `json:"spec_type"`
}

// AssignmentResponse 分配记录
type AssignmentResponse struct {
	ID                string    `json:"id"`
	WeekNumber        int       `json:"week_number"`
	FloorNumber       int       `json:"floor_number"`
	MemberID          string    `json:"member_id"`
	MemberName        string    `json:"member_name,omitempty"`
	Slot              *string   `json:"slot"`
	IsUpgradeMaterial bool      `json:"is_upgrade_material"`
	Material          string    `json:"material,omitempty"`
	SpecType          string    `json:"spec_type"`
	AssignedAt        time.Time `json:"assigned_at"`
	IsUndone          bool      `json:"is_undone"`
	IsManualEdit      bool      `json:"is_manual_edit"`
	ItemType          *string   `json:"item_type,omitempty"`
}

// ExtraCountResponse 某成员以 Extra 方式获得某掉落的次数
type ExtraCountResponse struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

// ── 周次模块响应 ──

// WeekResponse 周次信息
type WeekResponse struct {
	WeekNumber int       `json:"week_number"`
	StartedAt  time.Time `json:"started_at"`
	IsCurrent  bool      `json:"is_current"`
}

// DeleteWeekResponse 删除周次结果
type DeleteWeekResponse struct {
	WeekNumber  int  `json:"week_number"`
	Reverted    int  `json:"reverted"` // 已回滚的分配数
	Skipped     int  `json:"skipped"`  // 配装中已无对应条目而跳过的分配数
	CurrentWeek *int `json:"current_week"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
