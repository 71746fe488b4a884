package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
)

// ── 测试辅助 ──

func setupTestWeekService() (WeekService, *testEnv) {
	env := newTestEnv()
	return NewWeekService(env.repo, env.locker, env.logger), env
}

func intPtr(n int) *int { return &n }

// ── Create ──

func TestWeekService_Create_DefaultNumber(t *testing.T) {
	svc, env := setupTestWeekService()
	ctx := context.Background()

	first, err := svc.Create(ctx, &dto.CreateWeekRequest{MakeCurrent: true})
	if err != nil {
		t.Fatalf("Create 应成功，但返回错误: %v", err)
	}
	if first.WeekNumber != 1 || !first.IsCurrent {
		t.Errorf("期望第 1 周且为当前周，实际: %+v", first)
	}

	second, err := svc.Create(ctx, &dto.CreateWeekRequest{MakeCurrent: true})
	if err != nil {
		t.Fatalf("Create 应成功，但返回错误: %v", err)
	}
	if second.WeekNumber != 2 {
		t.Errorf("期望第 2 周，实际: %d", second.WeekNumber)
	}
	if env.weeks.weeks[1].IsCurrent {
		t.Error("新当前周创建后第 1 周不应再是当前周")
	}
}

func TestWeekService_Create_Explicit(t *testing.T) {
	svc, _ := setupTestWeekService()
	ctx := context.Background()
	started := time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC)

	resp, err := svc.Create(ctx, &dto.CreateWeekRequest{WeekNumber: intPtr(7), StartedAt: &started})
	if err != nil {
		t.Fatalf("Create 应成功，但返回错误: %v", err)
	}
	if resp.WeekNumber != 7 || !resp.StartedAt.Equal(started) || resp.IsCurrent {
		t.Errorf("周次不符: %+v", resp)
	}

	_, err = svc.Create(ctx, &dto.CreateWeekRequest{WeekNumber: intPtr(7)})
	if !errors.Is(err, ErrWeekExists) {
		t.Errorf("期望 ErrWeekExists，实际: %v", err)
	}
}

// ── GetCurrent / SetCurrent ──

func TestWeekService_CurrentWeek(t *testing.T) {
	svc, _ := setupTestWeekService()
	ctx := context.Background()

	if _, err := svc.GetCurrent(ctx); !errors.Is(err, ErrWeekNotFound) {
		t.Errorf("无当前周期望 ErrWeekNotFound，实际: %v", err)
	}

	_, _ = svc.Create(ctx, &dto.CreateWeekRequest{MakeCurrent: true})
	_, _ = svc.Create(ctx, &dto.CreateWeekRequest{MakeCurrent: true})

	if _, err := svc.SetCurrent(ctx, 1); err != nil {
		t.Fatalf("SetCurrent 应成功，但返回错误: %v", err)
	}
	cur, err := svc.GetCurrent(ctx)
	if err != nil {
		t.Fatalf("GetCurrent 应成功，但返回错误: %v", err)
	}
	if cur.WeekNumber != 1 {
		t.Errorf("期望当前周 1，实际: %d", cur.WeekNumber)
	}

	list, _ := svc.List(ctx)
	currents := 0
	for _, w := range list {
		if w.IsCurrent {
			currents++
		}
	}
	if currents != 1 {
		t.Errorf("应恰有一个当前周，实际: %d", currents)
	}

	if _, err := svc.SetCurrent(ctx, 99); !errors.Is(err, ErrWeekNotFound) {
		t.Errorf("期望 ErrWeekNotFound，实际: %v", err)
	}
}

// ── Delete ──

func TestWeekService_Delete_RevertsAssignments(t *testing.T) {
	svc, env := setupTestWeekService()
	loot := NewLootService(env.repo, env.locker, env.logger)
	gear := NewGearService(env.repo, env.source, env.locker, env.logger)
	ctx := context.Background()

	env.addMember("alice", "Alice", model.GearList{
		raidItem(model.SlotHead),
		raidItem(model.SlotLeftRing),
		tomeItem(model.SlotBody),
		raidItem(model.SlotWeapon),
	})
	env.addMember("bob", "Bob", model.GearList{raidItem(model.SlotHead)})
	env.startWeek(1)

	mustAssign := func(req *dto.AssignRequest) {
		t.Helper()
		if _, err := loot.Assign(ctx, req, ""); err != nil {
			t.Fatalf("Assign 失败: %v", err)
		}
	}
	mustAssign(slotAssign("alice", model.SlotHead, 2, model.SpecMain))
	mustAssign(slotAssign("alice", model.SlotRing, 1, model.SpecMain))
	mustAssign(materialAssign("alice", model.MaterialArmor, 3, model.SpecMain))
	mustAssign(slotAssign("bob", model.SlotWeapon, 4, model.SpecExtra))
	if _, err := gear.SetItemAcquired(ctx, "alice", model.SlotWeapon, flagReq(model.SpecMain, true), "alice", model.RoleMember); err != nil {
		t.Fatalf("SetItemAcquired 失败: %v", err)
	}

	resp, err := svc.Delete(ctx, 1)
	if err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if resp.Reverted != 5 || resp.Skipped != 0 {
		t.Errorf("期望回滚 5 条、跳过 0 条，实际: %+v", resp)
	}
	if resp.CurrentWeek != nil {
		t.Errorf("无剩余周次时当前周应为空，实际: %v", *resp.CurrentWeek)
	}

	for _, it := range env.gear("alice", model.SpecMain) {
		if it.IsAcquired || it.UpgradeMaterialAcquired {
			t.Errorf("槽位 %s 应已回滚: %+v", it.Slot, it)
		}
	}
	if len(env.assignments.entries) != 0 {
		t.Errorf("分配记录应被物理删除，剩余: %d", len(env.assignments.entries))
	}
	if _, ok := env.weeks.weeks[1]; ok {
		t.Error("周次应被删除")
	}
}

func TestWeekService_Delete_SkipsUndoneAndMissing(t *testing.T) {
	svc, env := setupTestWeekService()
	loot := NewLootService(env.repo, env.locker, env.logger)
	ctx := context.Background()

	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead), raidItem(model.SlotFeet)})
	env.addMember("bob", "Bob", model.GearList{raidItem(model.SlotHand)})
	env.startWeek(1)

	head, _ := loot.Assign(ctx, slotAssign("alice", model.SlotHead, 2, model.SpecMain), "")
	_, _ = loot.Assign(ctx, slotAssign("alice", model.SlotFeet, 2, model.SpecMain), "")
	_, _ = loot.Assign(ctx, slotAssign("bob", model.SlotHand, 2, model.SpecMain), "")
	_, _ = loot.Undo(ctx, head.ID)

	// Bob 已删除；Alice 的 Feet 已从配装中消失
	delete(env.members.members, "bob")
	alice := env.members.members["alice"]
	rec := alice.Record(model.SpecMain)
	rec.Items = model.GearList{rec.Items[0]}
	alice.ApplyRecord(model.SpecMain, rec)

	resp, err := svc.Delete(ctx, 1)
	if err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if resp.Reverted != 0 || resp.Skipped != 2 {
		t.Errorf("期望回滚 0 条、跳过 2 条，实际: %+v", resp)
	}
}

func TestWeekService_Delete_KeepsEarlierManualEdit(t *testing.T) {
	svc, env := setupTestWeekService()
	gear := NewGearService(env.repo, env.source, env.locker, env.logger)
	ctx := context.Background()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead)})

	env.startWeek(1)
	if _, err := gear.SetItemAcquired(ctx, "alice", model.SlotHead, flagReq(model.SpecMain, true), "alice", model.RoleMember); err != nil {
		t.Fatalf("SetItemAcquired 失败: %v", err)
	}
	env.startWeek(2)
	if _, err := gear.SetItemAcquired(ctx, "alice", model.SlotHead, flagReq(model.SpecMain, true), "alice", model.RoleMember); err != nil {
		t.Fatalf("SetItemAcquired 失败: %v", err)
	}

	resp, err := svc.Delete(ctx, 2)
	if err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if resp.Reverted != 0 {
		t.Errorf("第 2 周无可回滚记录，实际回滚: %d", resp.Reverted)
	}
	if !itemBySlot(env.gear("alice", model.SpecMain), model.SlotHead).IsAcquired {
		t.Error("第 1 周的手动获取应保留")
	}

	// 删除第 1 周才回滚
	if _, err := svc.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if itemBySlot(env.gear("alice", model.SpecMain), model.SlotHead).IsAcquired {
		t.Error("删除第 1 周后 Head 应回滚为未获取")
	}
}

func TestWeekService_Delete_PromotesLatest(t *testing.T) {
	svc, env := setupTestWeekService()
	ctx := context.Background()

	env.startWeek(1)
	env.startWeek(2)
	env.startWeek(3)
	_ = env.weeks.Create(ctx, &model.Week{WeekNumber: 4})
	_ = env.weeks.ClearCurrent(ctx)
	_ = env.weeks.SetCurrent(ctx, 4)

	resp, err := svc.Delete(ctx, 4)
	if err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if resp.CurrentWeek == nil || *resp.CurrentWeek != 3 {
		t.Fatalf("期望第 3 周成为当前周，实际: %v", resp.CurrentWeek)
	}
	if !env.weeks.weeks[3].IsCurrent {
		t.Error("第 3 周应被标记为当前周")
	}

	// 删除非当前周不改变当前周
	resp, err = svc.Delete(ctx, 1)
	if err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if resp.CurrentWeek == nil || *resp.CurrentWeek != 3 {
		t.Errorf("当前周应保持第 3 周，实际: %v", resp.CurrentWeek)
	}
}

func TestWeekService_Delete_NotFound(t *testing.T) {
	svc, _ := setupTestWeekService()

	_, err := svc.Delete(context.Background(), 42)
	if !errors.Is(err, ErrWeekNotFound) {
		t.Errorf("期望 ErrWeekNotFound，实际: %v", err)
	}
}
