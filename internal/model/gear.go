package model

// ── 装备槽位 ──

// GearSlot 装备槽位（固定 11 个身体部位）
type GearSlot string

const (
	SlotWeapon    GearSlot = "Weapon"
	SlotHead      GearSlot = "Head"
	SlotBody      GearSlot = "Body"
	SlotHand      GearSlot = "Hand"
	SlotLegs      GearSlot = "Legs"
	SlotFeet      GearSlot = "Feet"
	SlotEars      GearSlot = "Ears"
	SlotNeck      GearSlot = "Neck"
	SlotWrist     GearSlot = "Wrist"
	SlotLeftRing  GearSlot = "LeftRing"
	SlotRightRing GearSlot = "RightRing"

	// SlotRing 仅用于分配请求：左右戒指合并为一个掉落
	SlotRing GearSlot = "Ring"
)

// AllSlots 固定槽位顺序，"第一个匹配"的判定均按此顺序
var AllSlots = [...]GearSlot{
	SlotWeapon, SlotHead, SlotBody, SlotHand, SlotLegs, SlotFeet,
	SlotEars, SlotNeck, SlotWrist, SlotLeftRing, SlotRightRing,
}

// IsValid 是否为 11 个真实槽位之一（不含 Ring）
func (s GearSlot) IsValid() bool {
	for _, slot := range AllSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// IsRing 左戒、右戒或合并戒指
func (s GearSlot) IsRing() bool {
	return s == SlotRing || s == SlotLeftRing || s == SlotRightRing
}

// IsArmor 是否属于防具强化材料覆盖的槽位
func (s GearSlot) IsArmor() bool {
	switch s {
	case SlotHead, SlotBody, SlotHand, SlotLegs, SlotFeet:
		return true
	}
	return false
}

// IsAccessory 是否属于饰品强化材料覆盖的槽位
func (s GearSlot) IsAccessory() bool {
	switch s {
	case SlotEars, SlotNeck, SlotWrist, SlotLeftRing, SlotRightRing:
		return true
	}
	return false
}

// ── 物品来源 ──

// ItemType 物品来源类型
type ItemType string

const (
	ItemTypeRaid          ItemType = "raid"           // 零式掉落
	ItemTypeAugmentedTome ItemType = "augmented_tome" // 点数装备，需强化材料
)

// IsValid 是否为已知类型
func (t ItemType) IsValid() bool {
	return t == ItemTypeRaid || t == ItemTypeAugmentedTome
}

// ── 配装类型 ──

// SpecType 主职/副职/额外
type SpecType string

const (
	SpecMain  SpecType = "main_spec"
	SpecOff   SpecType = "off_spec"
	SpecExtra SpecType = "extra" // 无人需要时的自由分配，仅用于分配记录
)

// IsValid 是否为合法的分配类型
func (s SpecType) IsValid() bool {
	return s == SpecMain || s == SpecOff || s == SpecExtra
}

// IsGearSpec 是否对应一套装备记录（主职或副职）
func (s SpecType) IsGearSpec() bool {
	return s == SpecMain || s == SpecOff
}

// Other 返回另一套配装类型
func (s SpecType) Other() SpecType {
	if s == SpecMain {
		return SpecOff
	}
	return SpecMain
}

// ── 强化材料 ──

// MaterialType 强化材料类别
type MaterialType string

const (
	MaterialArmor     MaterialType = "armor"
	MaterialAccessory MaterialType = "accessory"
)

// IsValid 是否为已知材料
func (m MaterialType) IsValid() bool {
	return m == MaterialArmor || m == MaterialAccessory
}

// Covers 材料是否作用于该槽位
func (m MaterialType) Covers(slot GearSlot) bool {
	if m == MaterialArmor {
		return slot.IsArmor()
	}
	return slot.IsAccessory()
}

// MaterialForSlot 返回槽位对应的强化材料
func MaterialForSlot(slot GearSlot) MaterialType {
	if slot.IsArmor() {
		return MaterialArmor
	}
	return MaterialAccessory
}

// ── 装备条目与链接状态缓存 ──

// GearItem 某一槽位在一套配装中的获取状态
type GearItem struct {
	Slot                    GearSlot `json:"slot"`
	ItemName                string   `json:"item_name"`
	ItemType                ItemType `json:"item_type"`
	IsAcquired              bool     `json:"is_acquired"`
	UpgradeMaterialAcquired bool     `json:"upgrade_material_acquired"`
}

// GearList 一套配装的全部槽位
type GearList []GearItem

// Clone 深拷贝
func (l GearList) Clone() GearList {
	if l == nil {
		return nil
	}
	out := make(GearList, len(l))
	copy(out, l)
	return out
}

// Find 按槽位查找条目，返回下标
func (l GearList) Find(slot GearSlot) (int, bool) {
	for i := range l {
		if l[i].Slot == slot {
			return i, true
		}
	}
	return -1, false
}

// SlotState 链接状态缓存中单个槽位的记忆
type SlotState struct {
	Acquired bool `json:"acquired"`
	Upgraded bool `json:"upgraded"`
}

// LinkStateMap 外部清单标识 → 槽位 → 获取状态
type LinkStateMap map[string]map[GearSlot]SlotState

// Clone 深拷贝
func (m LinkStateMap) Clone() LinkStateMap {
	if m == nil {
		return nil
	}
	out := make(LinkStateMap, len(m))
	for link, slots := range m {
		inner := make(map[GearSlot]SlotState, len(slots))
		for slot, st := range slots {
			inner[slot] = st
		}
		out[link] = inner
	}
	return out
}

// GearRecord 一套配装的完整状态：当前链接、装备列表、链接状态缓存
type GearRecord struct {
	Link       string       `json:"link"`
	Items      GearList     `json:"items"`
	LinkStates LinkStateMap `json:"link_states"`
}

// Clone 深拷贝
func (r GearRecord) Clone() GearRecord {
	return GearRecord{
		Link:       r.Link,
		Items:      r.Items.Clone(),
		LinkStates: r.LinkStates.Clone(),
	}
}

// RememberItems 把当前装备状态写回当前链接的缓存条目
func (r *GearRecord) RememberItems() {
	if r.Link == "" {
		return
	}
	if r.LinkStates == nil {
		r.LinkStates = make(LinkStateMap)
	}
	states := make(map[GearSlot]SlotState, len(r.Items))
	for _, it := range r.Items {
		states[it.Slot] = SlotState{Acquired: it.IsAcquired, Upgraded: it.UpgradeMaterialAcquired}
	}
	r.LinkStates[r.Link] = states
}

// RestoreItems 用缓存中的状态覆盖条目的获取标记（缓存中不存在的槽位保持原样）
func (r *GearRecord) RestoreItems(link string) {
	states, ok := r.LinkStates[link]
	if !ok {
		return
	}
	for i := range r.Items {
		if st, ok := states[r.Items[i].Slot]; ok {
			r.Items[i].IsAcquired = st.Acquired
			r.Items[i].UpgradeMaterialAcquired = st.Upgraded
		}
	}
}
