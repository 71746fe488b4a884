package service

import (
	"raid-loot/backend/internal/model"
)

// ═══════════════════════════════════════════════════════════
// 资格计算（纯函数，不读写存储）
// ═══════════════════════════════════════════════════════════
//
// 规则：
//   - 槽位：主职该槽位为零式掉落且未获取即有资格
//   - 戒指：左戒、右戒需求按成员合并，每名成员只出现一次
//   - 材料：持有该类别未强化的点数装备即有资格，需求数为此类装备件数
//   - 只要有任一成员主职有需求，副职需求整体忽略
//   - 主副职均无人需要时，返回全体成员（Extra，需求数 0）

// Candidate 某掉落的一名候选成员
type Candidate struct {
	MemberID    string
	Name        string
	NeededCount int
	SpecType    model.SpecType
}

// DropEligibility 单个掉落的资格结果
type DropEligibility struct {
	Drop       model.DropDescriptor
	SpecType   model.SpecType
	Candidates []Candidate
}

// ResolveFloor 计算某层全部掉落的资格；非法层号返回 nil
func ResolveFloor(members []model.Member, floor int) []DropEligibility {
	drops := model.FloorDrops(floor)
	if drops == nil {
		return nil
	}
	out := make([]DropEligibility, 0, len(drops))
	for _, d := range drops {
		out = append(out, ResolveDrop(members, d))
	}
	return out
}

// ResolveDrop 计算单个掉落的资格
func ResolveDrop(members []model.Member, drop model.DropDescriptor) DropEligibility {
	for _, spec := range []model.SpecType{model.SpecMain, model.SpecOff} {
		var cands []Candidate
		for i := range members {
			m := &members[i]
			n := neededCount(m.Record(spec).Items, drop)
			if n == 0 {
				continue
			}
			cands = append(cands, Candidate{
				MemberID:    m.MemberID,
				Name:        m.Name,
				NeededCount: n,
				SpecType:    spec,
			})
		}
		if len(cands) > 0 {
			return DropEligibility{Drop: drop, SpecType: spec, Candidates: cands}
		}
	}

	extra := make([]Candidate, 0, len(members))
	for i := range members {
		extra = append(extra, Candidate{
			MemberID: members[i].MemberID,
			Name:     members[i].Name,
			SpecType: model.SpecExtra,
		})
	}
	return DropEligibility{Drop: drop, SpecType: model.SpecExtra, Candidates: extra}
}

// neededCount 单套配装对某掉落的需求数
func neededCount(items model.GearList, drop model.DropDescriptor) int {
	if drop.IsMaterial() {
		n := 0
		for _, it := range items {
			if drop.Material.Covers(it.Slot) && it.ItemType == model.ItemTypeAugmentedTome && !it.UpgradeMaterialAcquired {
				n++
			}
		}
		return n
	}

	var slots []model.GearSlot
	if drop.Slot.IsRing() {
		slots = []model.GearSlot{model.SlotLeftRing, model.SlotRightRing}
	} else {
		slots = []model.GearSlot{drop.Slot}
	}

	n := 0
	for _, slot := range slots {
		i, ok := items.Find(slot)
		if !ok {
			continue
		}
		if items[i].ItemType == model.ItemTypeRaid && !items[i].IsAcquired {
			n++
		}
	}
	return n
}
