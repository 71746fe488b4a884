package dto

// ── 配装模块 DTO ──

// ImportGearRequest 从外部清单导入配装
type ImportGearRequest struct {
	Link     string `json:"link"      binding:"required,max=512"`
	SpecType string `json:"spec_type" binding:"required,oneof=main_spec off_spec"`
}

// SetGearFlagRequest 手动切换获取/强化状态
type SetGearFlagRequest struct {
	SpecType string `json:"spec_type" binding:"required,oneof=main_spec off_spec"`
	Value    *bool  `json:"value"     binding:"required"`
}
