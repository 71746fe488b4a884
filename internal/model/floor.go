package model

// FloorCount 每周副本层数
const FloorCount = 4

// DropDescriptor 某层可掉落的一件物品：槽位或强化材料二选一
type DropDescriptor struct {
	Slot     GearSlot     `json:"slot,omitempty"`
	Material MaterialType `json:"material,omitempty"`
}

// IsMaterial 是否为强化材料
func (d DropDescriptor) IsMaterial() bool { return d.Material != "" }

// Key 与 LootAssignment.DropKey 同构的掉落标识
func (d DropDescriptor) Key() string {
	if d.IsMaterial() {
		return MaterialDropKey(d.Material)
	}
	return SlotDropKey(d.Slot)
}

var floorDrops = map[int][]DropDescriptor{
	1: {{Slot: SlotEars}, {Slot: SlotNeck}, {Slot: SlotWrist}, {Slot: SlotRing}},
	2: {{Slot: SlotHead}, {Slot: SlotHand}, {Slot: SlotFeet}, {Material: MaterialAccessory}},
	3: {{Slot: SlotBody}, {Slot: SlotLegs}, {Material: MaterialArmor}},
	4: {{Slot: SlotWeapon}},
}

// FloorDrops 返回某层的掉落表副本；非法层号返回 nil
func FloorDrops(floor int) []DropDescriptor {
	drops, ok := floorDrops[floor]
	if !ok {
		return nil
	}
	out := make([]DropDescriptor, len(drops))
	copy(out, drops)
	return out
}

// FloorHasDrop 判断描述符是否属于该层
func FloorHasDrop(floor int, d DropDescriptor) bool {
	key := d.Key()
	for _, drop := range floorDrops[floor] {
		if drop.Key() == key {
			return true
		}
	}
	return false
}
