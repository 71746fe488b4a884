package model

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 成员角色
const (
	RoleAdmin   = "admin"   // 管理成员名单
	RoleManager = "manager" // 分配战利品、管理周次
	RoleMember  = "member"  // 仅维护自己的配装
)

// Member 团队成员表 — 对应 members
// 主职与副职各持有一套独立的配装记录
type Member struct {
	MemberID string `gorm:"type:varchar(36);primaryKey"                json:"member_id"`
	Name     string `gorm:"type:varchar(100);not null;index"           json:"name"`
	Role     string `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	PINHash  string `gorm:"type:varchar(255);not null"                 json:"-"`

	MainSpecLink       string                           `gorm:"type:varchar(255);not null;default:''" json:"main_spec_link"`
	MainSpecGear       datatypes.JSONType[GearList]     `json:"main_spec_gear"`
	MainSpecLinkStates datatypes.JSONType[LinkStateMap] `json:"-"`
	OffSpecLink        string                           `gorm:"type:varchar(255);not null;default:''" json:"off_spec_link"`
	OffSpecGear        datatypes.JSONType[GearList]     `json:"off_spec_gear"`
	OffSpecLinkStates  datatypes.JSONType[LinkStateMap] `json:"-"`
	VersionedModel
}

// TableName 指定表名
func (Member) TableName() string { return "members" }

// BeforeCreate 生成主键（sqlite 无 gen_random_uuid）
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.MemberID == "" {
		m.MemberID = uuid.New().String()
	}
	return nil
}

// Record 取出指定配装的深拷贝；Extra 返回空记录
func (m *Member) Record(spec SpecType) GearRecord {
	switch spec {
	case SpecMain:
		return GearRecord{
			Link:       m.MainSpecLink,
			Items:      m.MainSpecGear.Data(),
			LinkStates: m.MainSpecLinkStates.Data(),
		}.Clone()
	case SpecOff:
		return GearRecord{
			Link:       m.OffSpecLink,
			Items:      m.OffSpecGear.Data(),
			LinkStates: m.OffSpecLinkStates.Data(),
		}.Clone()
	}
	return GearRecord{}
}

// ApplyRecord 用新记录整体替换指定配装
func (m *Member) ApplyRecord(spec SpecType, rec GearRecord) {
	rec = rec.Clone()
	switch spec {
	case SpecMain:
		m.MainSpecLink = rec.Link
		m.MainSpecGear = datatypes.NewJSONType(rec.Items)
		m.MainSpecLinkStates = datatypes.NewJSONType(rec.LinkStates)
	case SpecOff:
		m.OffSpecLink = rec.Link
		m.OffSpecGear = datatypes.NewJSONType(rec.Items)
		m.OffSpecLinkStates = datatypes.NewJSONType(rec.LinkStates)
	}
}

// CanManageLoot 是否有分配/撤销/周次管理权限
func (m *Member) CanManageLoot() bool {
	return m.Role == RoleAdmin || m.Role == RoleManager
}
