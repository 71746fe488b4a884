package service

import (
	"raid-loot/backend/internal/model"
)

// ── 配装记录变更 ──
//
// 分配、撤销、手动编辑与周次回滚共用以下函数。
// 每次变更后调用方负责 rec.RememberItems() 同步当前链接的状态缓存。

// acquireSlot 将槽位标记为已获取，返回实际变更的槽位
// 戒指请求依次尝试左戒、右戒（须为零式掉落且未获取）
func acquireSlot(rec *model.GearRecord, slot model.GearSlot) (model.GearSlot, error) {
	if slot.IsRing() {
		for _, ring := range []model.GearSlot{model.SlotLeftRing, model.SlotRightRing} {
			i, ok := rec.Items.Find(ring)
			if !ok {
				continue
			}
			if rec.Items[i].ItemType == model.ItemTypeRaid && !rec.Items[i].IsAcquired {
				rec.Items[i].IsAcquired = true
				return ring, nil
			}
		}
		return "", ErrNoMatchingItem
	}

	// 已获取的槽位不可再次分配
	i, ok := rec.Items.Find(slot)
	if !ok || rec.Items[i].IsAcquired {
		return "", ErrNoMatchingItem
	}
	rec.Items[i].IsAcquired = true
	return slot, nil
}

// applyMaterial 按固定槽位顺序，将第一件尚未强化的点数装备标记为已强化
func applyMaterial(rec *model.GearRecord, material model.MaterialType) (model.GearSlot, error) {
	for _, slot := range model.AllSlots {
		if !material.Covers(slot) {
			continue
		}
		i, ok := rec.Items.Find(slot)
		if !ok {
			continue
		}
		it := &rec.Items[i]
		if it.ItemType == model.ItemTypeAugmentedTome && !it.UpgradeMaterialAcquired {
			it.UpgradeMaterialAcquired = true
			return slot, nil
		}
	}
	return "", ErrNoMatchingItem
}

// releaseSlot 清除槽位的获取标记
func releaseSlot(rec *model.GearRecord, slot model.GearSlot) error {
	i, ok := rec.Items.Find(slot)
	if !ok {
		return ErrNoMatchingItem
	}
	rec.Items[i].IsAcquired = false
	return nil
}

// releaseUpgrade 清除指定槽位的强化标记
func releaseUpgrade(rec *model.GearRecord, slot model.GearSlot) error {
	i, ok := rec.Items.Find(slot)
	if !ok {
		return ErrNoMatchingItem
	}
	rec.Items[i].UpgradeMaterialAcquired = false
	return nil
}

// releaseMaterial 按固定槽位顺序，撤销第一件已强化的点数装备
// 多件同类装备同时处于已强化状态时，撤销的未必是当初分配的那一件
func releaseMaterial(rec *model.GearRecord, material model.MaterialType) (model.GearSlot, error) {
	for _, slot := range model.AllSlots {
		if !material.Covers(slot) {
			continue
		}
		i, ok := rec.Items.Find(slot)
		if !ok {
			continue
		}
		it := &rec.Items[i]
		if it.ItemType == model.ItemTypeAugmentedTome && it.UpgradeMaterialAcquired {
			it.UpgradeMaterialAcquired = false
			return slot, nil
		}
	}
	return "", ErrNoMatchingItem
}

// revertAssignment 回滚一条分配记录对成员配装的变更（撤销与删除周次共用）
// Extra 分配不改动配装，直接返回
func revertAssignment(m *model.Member, a *model.LootAssignment) error {
	if !a.SpecType.IsGearSpec() {
		return nil
	}

	rec := m.Record(a.SpecType)
	var err error
	switch {
	case a.IsUpgradeMaterial && a.Slot != nil:
		// 手动强化编辑记录了确切槽位
		err = releaseUpgrade(&rec, *a.Slot)
	case a.IsUpgradeMaterial:
		_, err = releaseMaterial(&rec, a.Material())
	case a.Slot != nil:
		err = releaseSlot(&rec, *a.Slot)
	default:
		err = ErrNoMatchingItem
	}
	if err != nil {
		return err
	}

	rec.RememberItems()
	m.ApplyRecord(a.SpecType, rec)
	return nil
}
