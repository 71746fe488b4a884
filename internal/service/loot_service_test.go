package service

import (
	"context"
	"errors"
	"testing"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
	pkgerrors "raid-loot/backend/pkg/errors"
)

// ── 测试辅助 ──

func setupTestLootService() (LootService, *testEnv) {
	env := newTestEnv()
	return NewLootService(env.repo, env.locker, env.logger), env
}

func slotAssign(memberID string, slot model.GearSlot, floor int, spec model.SpecType) *dto.AssignRequest {
	return &dto.AssignRequest{
		DropRequest: dto.DropRequest{Slot: string(slot)},
		FloorNumber: floor,
		MemberID:    memberID,
		SpecType:    string(spec),
	}
}

func materialAssign(memberID string, material model.MaterialType, floor int, spec model.SpecType) *dto.AssignRequest {
	return &dto.AssignRequest{
		DropRequest: dto.DropRequest{Material: string(material)},
		FloorNumber: floor,
		MemberID:    memberID,
		SpecType:    string(spec),
	}
}

// ── 完整场景 ──

func TestLootService_AliceBobScenario(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead)})
	env.addMember("bob", "Bob", model.GearList{acquired(raidItem(model.SlotHead))})
	env.startWeek(1)

	elig, err := svc.GetEligibility(ctx, &dto.EligibilityRequest{Floor: 2})
	if err != nil {
		t.Fatalf("GetEligibility 应成功，但返回错误: %v", err)
	}
	var head *dto.DropEligibilityResponse
	for i := range elig.Drops {
		if elig.Drops[i].Slot == string(model.SlotHead) {
			head = &elig.Drops[i]
		}
	}
	if head == nil {
		t.Fatal("资格表中缺少 Head")
	}
	if len(head.Candidates) != 1 || head.Candidates[0].MemberID != "alice" ||
		head.Candidates[0].NeededCount != 1 || head.SpecType != string(model.SpecMain) {
		t.Fatalf("Head 资格不符: %+v", head)
	}

	if _, err := svc.Assign(ctx, slotAssign("alice", model.SlotHead, 2, model.SpecMain), "admin"); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if !itemBySlot(env.gear("alice", model.SpecMain), model.SlotHead).IsAcquired {
		t.Error("Alice 的 Head 应已标记获取")
	}

	_, err = svc.Assign(ctx, slotAssign("bob", model.SlotHead, 2, model.SpecMain), "admin")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("期望 ErrAlreadyAssigned，实际: %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("期望 Conflict，实际: %v", KindOf(err))
	}
}

// ── Assign ──

func TestLootService_Assign_NoCurrentWeek(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon)})

	_, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotWeapon, 4, model.SpecMain), "")
	if !errors.Is(err, ErrNoCurrentWeek) {
		t.Errorf("期望 ErrNoCurrentWeek，实际: %v", err)
	}
}

func TestLootService_Assign_Validation(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon)})
	env.startWeek(1)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *dto.AssignRequest
		want error
	}{
		{"层号越界", slotAssign("alice", model.SlotWeapon, 5, model.SpecMain), ErrInvalidFloor},
		{"配装类型无效", slotAssign("alice", model.SlotWeapon, 4, "bogus"), ErrInvalidSpecType},
		{"槽位无效", slotAssign("alice", "Shield", 4, model.SpecMain), ErrInvalidSlot},
		{"掉落不在该层", slotAssign("alice", model.SlotWeapon, 1, model.SpecMain), ErrDropNotOnFloor},
		{"槽位与材料同时给出", &dto.AssignRequest{
			DropRequest: dto.DropRequest{Slot: "Head", Material: "armor"},
			FloorNumber: 2, MemberID: "alice", SpecType: "main_spec",
		}, ErrInvalidDrop},
		{"成员不存在", slotAssign("ghost", model.SlotWeapon, 4, model.SpecMain), ErrMemberNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Assign(ctx, tt.req, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

func TestLootService_Assign_NoMatchingItem(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead)})
	env.startWeek(1)

	_, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotWeapon, 4, model.SpecMain), "")
	if !errors.Is(err, ErrNoMatchingItem) {
		t.Errorf("期望 ErrNoMatchingItem，实际: %v", err)
	}
	if len(env.assignments.entries) != 0 {
		t.Error("失败的分配不应写入账本")
	}
}

func TestLootService_Assign_AlreadyAcquiredSlot(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("bob", "Bob", model.GearList{acquired(raidItem(model.SlotHead))})
	env.startWeek(1)

	_, err := svc.Assign(ctx, slotAssign("bob", model.SlotHead, 2, model.SpecMain), "")
	if !errors.Is(err, ErrNoMatchingItem) {
		t.Errorf("期望 ErrNoMatchingItem，实际: %v", err)
	}
	if len(env.assignments.entries) != 0 {
		t.Error("已获取的槽位不应写入账本")
	}
	if !itemBySlot(env.gear("bob", model.SpecMain), model.SlotHead).IsAcquired {
		t.Error("Head 应保持已获取")
	}

	// 额外分配不触碰配装，仍可记录
	if _, err := svc.Assign(ctx, slotAssign("bob", model.SlotHead, 2, model.SpecExtra), ""); err != nil {
		t.Fatalf("额外分配应成功，但返回错误: %v", err)
	}
	if !itemBySlot(env.gear("bob", model.SpecMain), model.SlotHead).IsAcquired {
		t.Error("额外分配后 Head 应保持已获取")
	}
}

func TestLootService_Assign_DuplicateRejectedByStore(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead)})
	env.startWeek(1)
	// 另一实例已抢先写入同一掉落
	env.assignments.createErr = pkgerrors.ErrDuplicateDrop

	_, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotHead, 2, model.SpecMain), "")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("期望 ErrAlreadyAssigned，实际: %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("期望 Conflict，实际: %v", KindOf(err))
	}
}

func TestLootService_Assign_RingResolution(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{
		acquired(raidItem(model.SlotLeftRing)),
		raidItem(model.SlotRightRing),
	})
	env.startWeek(1)

	resp, err := svc.Assign(ctx, slotAssign("alice", model.SlotLeftRing, 1, model.SpecMain), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if resp.Slot == nil || *resp.Slot != string(model.SlotRightRing) {
		t.Errorf("记录的槽位应为实际修改的 RightRing，实际: %v", resp.Slot)
	}
	if !itemBySlot(env.gear("alice", model.SpecMain), model.SlotRightRing).IsAcquired {
		t.Error("RightRing 应已标记获取")
	}

	// 左右戒指共享同一掉落标识
	_, err = svc.Assign(ctx, slotAssign("alice", model.SlotRing, 1, model.SpecMain), "")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("期望 ErrAlreadyAssigned，实际: %v", err)
	}
}

func TestLootService_Assign_RingNoneLeft(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{
		acquired(raidItem(model.SlotLeftRing)),
		tomeItem(model.SlotRightRing),
	})
	env.startWeek(1)

	_, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotRing, 1, model.SpecMain), "")
	if !errors.Is(err, ErrNoMatchingItem) {
		t.Errorf("期望 ErrNoMatchingItem，实际: %v", err)
	}
}

func TestLootService_Assign_MaterialFirstBySlotOrder(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{
		upgraded(tomeItem(model.SlotHead)),
		tomeItem(model.SlotBody),
		tomeItem(model.SlotLegs),
	})
	env.startWeek(1)

	resp, err := svc.Assign(context.Background(), materialAssign("alice", model.MaterialArmor, 3, model.SpecMain), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if resp.Material != string(model.MaterialArmor) || !resp.IsUpgradeMaterial {
		t.Errorf("应记录为防具强化材料: %+v", resp)
	}
	gear := env.gear("alice", model.SpecMain)
	if !itemBySlot(gear, model.SlotBody).UpgradeMaterialAcquired {
		t.Error("Body 应为第一件被强化的点数装备")
	}
	if itemBySlot(gear, model.SlotLegs).UpgradeMaterialAcquired {
		t.Error("Legs 不应被强化")
	}
}

func TestLootService_Assign_ExtraLeavesGearUntouched(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{acquired(raidItem(model.SlotWeapon))})
	env.startWeek(1)
	before := env.members.members["alice"].Version

	resp, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotWeapon, 4, model.SpecExtra), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if resp.SpecType != string(model.SpecExtra) {
		t.Errorf("期望 extra，实际: %s", resp.SpecType)
	}
	if env.members.members["alice"].Version != before {
		t.Error("Extra 分配不应写回成员")
	}
}

func TestLootService_Assign_SpecIsolation(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotFeet)})
	env.setOffSpec("alice", model.GearList{raidItem(model.SlotFeet)})
	env.startWeek(1)

	if _, err := svc.Assign(context.Background(), slotAssign("alice", model.SlotFeet, 2, model.SpecOff), ""); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if itemBySlot(env.gear("alice", model.SpecMain), model.SlotFeet).IsAcquired {
		t.Error("副职分配不应修改主职配装")
	}
	if !itemBySlot(env.gear("alice", model.SpecOff), model.SlotFeet).IsAcquired {
		t.Error("副职 Feet 应已标记获取")
	}
}

// ── Undo ──

func TestLootService_Undo_Inverse(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHand)})
	env.startWeek(1)

	resp, err := svc.Assign(ctx, slotAssign("alice", model.SlotHand, 2, model.SpecMain), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}

	undone, err := svc.Undo(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Undo 应成功，但返回错误: %v", err)
	}
	if !undone.IsUndone {
		t.Error("返回的记录应为已撤销")
	}
	if itemBySlot(env.gear("alice", model.SpecMain), model.SlotHand).IsAcquired {
		t.Error("撤销后 Hand 应恢复为未获取")
	}

	_, err = svc.Undo(ctx, resp.ID)
	if !errors.Is(err, ErrAlreadyUndone) {
		t.Errorf("重复撤销期望 ErrAlreadyUndone，实际: %v", err)
	}

	// 撤销后可以重新分配
	if _, err := svc.Assign(ctx, slotAssign("alice", model.SlotHand, 2, model.SpecMain), ""); err != nil {
		t.Errorf("撤销后重新分配应成功，实际: %v", err)
	}
}

func TestLootService_Undo_MaterialRevertsFirstUpgraded(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{
		tomeItem(model.SlotEars),
		upgraded(tomeItem(model.SlotNeck)),
	})
	env.startWeek(1)

	resp, err := svc.Assign(ctx, materialAssign("alice", model.MaterialAccessory, 2, model.SpecMain), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	if _, err := svc.Undo(ctx, resp.ID); err != nil {
		t.Fatalf("Undo 应成功，但返回错误: %v", err)
	}

	gear := env.gear("alice", model.SpecMain)
	if itemBySlot(gear, model.SlotEars).UpgradeMaterialAcquired {
		t.Error("Ears 应被撤销强化")
	}
	if !itemBySlot(gear, model.SlotNeck).UpgradeMaterialAcquired {
		t.Error("Neck 不应受影响")
	}
}

func TestLootService_Undo_NotFound(t *testing.T) {
	svc, _ := setupTestLootService()

	_, err := svc.Undo(context.Background(), "missing")
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("期望 ErrAssignmentNotFound，实际: %v", err)
	}
}

func TestLootService_Undo_DeletedMember(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon)})
	env.startWeek(1)

	resp, err := svc.Assign(ctx, slotAssign("alice", model.SlotWeapon, 4, model.SpecMain), "")
	if err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	delete(env.members.members, "alice")

	if _, err := svc.Undo(ctx, resp.ID); err != nil {
		t.Fatalf("成员已删除时 Undo 仍应成功，实际: %v", err)
	}
	if !env.assignments.entries[resp.ID].IsUndone {
		t.Error("账本条目应已撤销")
	}
}

// ── GetEligibility ──

func TestLootService_GetEligibility_ReportsAssignment(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon)})
	env.startWeek(3)

	if _, err := svc.Assign(ctx, slotAssign("alice", model.SlotWeapon, 4, model.SpecMain), ""); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}

	resp, err := svc.GetEligibility(ctx, &dto.EligibilityRequest{Floor: 4})
	if err != nil {
		t.Fatalf("GetEligibility 应成功，但返回错误: %v", err)
	}
	if resp.WeekNumber != 3 {
		t.Errorf("期望周次 3，实际: %d", resp.WeekNumber)
	}
	if len(resp.Drops) != 1 || resp.Drops[0].Assigned == nil {
		t.Fatalf("Weapon 应显示已分配: %+v", resp.Drops)
	}
	if resp.Drops[0].Assigned.MemberName != "Alice" {
		t.Errorf("期望分配对象 Alice，实际: %s", resp.Drops[0].Assigned.MemberName)
	}
}

func TestLootService_GetEligibility_NoCurrentWeek(t *testing.T) {
	svc, env := setupTestLootService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon)})

	resp, err := svc.GetEligibility(context.Background(), &dto.EligibilityRequest{Floor: 4})
	if err != nil {
		t.Fatalf("无当前周时 GetEligibility 仍应成功，实际: %v", err)
	}
	if resp.WeekNumber != 0 {
		t.Errorf("期望周次 0，实际: %d", resp.WeekNumber)
	}
}

func TestLootService_GetEligibility_Errors(t *testing.T) {
	svc, _ := setupTestLootService()
	ctx := context.Background()

	if _, err := svc.GetEligibility(ctx, &dto.EligibilityRequest{Floor: 0}); !errors.Is(err, ErrInvalidFloor) {
		t.Errorf("期望 ErrInvalidFloor，实际: %v", err)
	}
	week := 9
	if _, err := svc.GetEligibility(ctx, &dto.EligibilityRequest{Floor: 1, Week: &week}); !errors.Is(err, ErrWeekNotFound) {
		t.Errorf("期望 ErrWeekNotFound，实际: %v", err)
	}
}

// ── GetExtraCounts ──

func TestLootService_GetExtraCounts(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", nil)
	env.addMember("bob", "Bob", nil)

	env.startWeek(1)
	if _, err := svc.Assign(ctx, slotAssign("alice", model.SlotLeftRing, 1, model.SpecExtra), ""); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	env.startWeek(2)
	if _, err := svc.Assign(ctx, slotAssign("alice", model.SlotRing, 1, model.SpecExtra), ""); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}
	bobRing, err := svc.Assign(ctx, slotAssign("bob", model.SlotRing, 1, model.SpecExtra), "")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("同周同层戒指只能分配一次，实际: %v %v", bobRing, err)
	}
	if _, err := svc.Assign(ctx, slotAssign("bob", model.SlotEars, 1, model.SpecExtra), ""); err != nil {
		t.Fatalf("Assign 应成功，但返回错误: %v", err)
	}

	counts, err := svc.GetExtraCounts(ctx, &dto.DropRequest{Slot: string(model.SlotRightRing)})
	if err != nil {
		t.Fatalf("GetExtraCounts 应成功，但返回错误: %v", err)
	}
	if len(counts) != 1 || counts[0].MemberID != "alice" || counts[0].Count != 2 {
		t.Errorf("期望 Alice 戒指 Extra 2 次，实际: %+v", counts)
	}

	none, err := svc.GetExtraCounts(ctx, &dto.DropRequest{Material: string(model.MaterialArmor)})
	if err != nil {
		t.Fatalf("GetExtraCounts 应成功，但返回错误: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("期望空结果，实际: %+v", none)
	}
}

// ── ListAssignments ──

func TestLootService_ListAssignments(t *testing.T) {
	svc, env := setupTestLootService()
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotWeapon), raidItem(model.SlotHead)})
	env.startWeek(1)

	first, _ := svc.Assign(ctx, slotAssign("alice", model.SlotWeapon, 4, model.SpecMain), "")
	_, _ = svc.Assign(ctx, slotAssign("alice", model.SlotHead, 2, model.SpecMain), "")
	_, _ = svc.Undo(ctx, first.ID)

	active, total, err := svc.ListAssignments(ctx, &dto.AssignmentListRequest{})
	if err != nil {
		t.Fatalf("ListAssignments 应成功，但返回错误: %v", err)
	}
	if total != 1 || len(active) != 1 {
		t.Errorf("默认应排除已撤销条目，实际 total=%d", total)
	}

	all, total, _ := svc.ListAssignments(ctx, &dto.AssignmentListRequest{IncludeUndone: true})
	if total != 2 || len(all) != 2 {
		t.Errorf("期望 2 条，实际 total=%d", total)
	}
	if all[0].MemberName != "Alice" {
		t.Errorf("期望成员名 Alice，实际: %s", all[0].MemberName)
	}
}
