package model

import "time"

// Week 团队周次表 — 对应 weeks
// 任意时刻至多一个周次 IsCurrent = true
type Week struct {
	WeekNumber int       `gorm:"primaryKey;autoIncrement:false" json:"week_number"`
	StartedAt  time.Time `gorm:"not null"                       json:"started_at"`
	IsCurrent  bool      `gorm:"not null;default:false;index"   json:"is_current"`
	BaseModel
}

// TableName 指定表名
func (Week) TableName() string { return "weeks" }
