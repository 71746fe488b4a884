package dto

import "time"

// ── 周次模块 DTO ──

// CreateWeekRequest 创建周次请求（周次号缺省为当前最大值 + 1）
type CreateWeekRequest struct {
	WeekNumber  *int       `json:"week_number"  binding:"omitempty,min=1"`
	StartedAt   *time.Time `json:"started_at"`
	MakeCurrent bool       `json:"make_current"`
}
