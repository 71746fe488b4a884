package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManualEditFloor 手动编辑不属于任何层，统一记为 0
const ManualEditFloor = 0

// LootAssignment 分配账本表 — 对应 loot_assignments
// 除 IsUndone 由 false 翻转为 true 外不可修改；仅删除周次时物理删除
// (week_number, floor_number, drop_key) 在未撤销的非手动编辑条目中唯一
type LootAssignment struct {
	AssignmentID      string    `gorm:"type:varchar(36);primaryKey"         json:"assignment_id"`
	WeekNumber        int       `gorm:"not null;index;uniqueIndex:uk_loot_assignments_active_drop,priority:1,where:is_undone = false AND is_manual_edit = false" json:"week_number"`
	FloorNumber       int       `gorm:"not null;uniqueIndex:uk_loot_assignments_active_drop,priority:2" json:"floor_number"`
	Drop              string    `gorm:"column:drop_key;type:varchar(40);not null;default:'';uniqueIndex:uk_loot_assignments_active_drop,priority:3" json:"-"`
	MemberID          string    `gorm:"type:varchar(36);not null;index"     json:"member_id"`
	Slot              *GearSlot `gorm:"type:varchar(20)"                    json:"slot"`
	IsUpgradeMaterial bool      `gorm:"not null;default:false"              json:"is_upgrade_material"`
	IsArmorMaterial   bool      `gorm:"not null;default:false"              json:"is_armor_material"`
	SpecType          SpecType  `gorm:"type:varchar(20);not null"           json:"spec_type"`
	AssignedAt        time.Time `gorm:"not null"                            json:"assigned_at"`
	AssignedBy        *string   `gorm:"type:varchar(36)"                    json:"assigned_by,omitempty"`
	IsUndone          bool      `gorm:"not null;default:false"              json:"is_undone"`
	IsManualEdit      bool      `gorm:"not null;default:false"              json:"is_manual_edit"`
	ItemType          *ItemType `gorm:"type:varchar(20)"                    json:"item_type,omitempty"`
	BaseModel

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (LootAssignment) TableName() string { return "loot_assignments" }

// BeforeCreate 生成主键并写入 drop_key
func (a *LootAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.AssignmentID == "" {
		a.AssignmentID = uuid.New().String()
	}
	a.Drop = a.DropKey()
	return nil
}

// Material 强化材料类别；非材料条目返回空串
func (a *LootAssignment) Material() MaterialType {
	if !a.IsUpgradeMaterial {
		return ""
	}
	if a.IsArmorMaterial {
		return MaterialArmor
	}
	return MaterialAccessory
}

// DropKey 同一周同一层内"至多分配一次"的掉落标识
func (a *LootAssignment) DropKey() string {
	if a.IsUpgradeMaterial {
		return MaterialDropKey(a.Material())
	}
	if a.Slot == nil {
		return ""
	}
	return SlotDropKey(*a.Slot)
}

// SlotDropKey 槽位掉落标识，左右戒指合并为 Ring
func SlotDropKey(slot GearSlot) string {
	if slot.IsRing() {
		return string(SlotRing)
	}
	return string(slot)
}

// MaterialDropKey 材料掉落标识
func MaterialDropKey(m MaterialType) string {
	return "material:" + string(m)
}
