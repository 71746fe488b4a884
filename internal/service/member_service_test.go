package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
)

// ── 测试辅助 ──

func setupTestMemberService() (MemberService, *testEnv) {
	env := newTestEnv()
	return NewMemberService(env.repo, env.source, env.logger), env
}

func buildRosterFile(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		for j, v := range row {
			f.SetCellValue("Sheet1", cell(colName(j), i+1), v)
		}
	}
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("生成测试文件失败: %v", err)
	}
	return buf
}

// ── Create ──

func TestMemberService_Create_Success(t *testing.T) {
	svc, env := setupTestMemberService()

	resp, err := svc.Create(context.Background(), &dto.CreateMemberRequest{Name: " Alice ", PIN: "1234"})
	if err != nil {
		t.Fatalf("Create 应成功，但返回错误: %v", err)
	}
	if resp.Name != "Alice" || resp.Role != model.RoleMember {
		t.Errorf("成员信息不符: %+v", resp)
	}

	stored := env.members.members[resp.ID]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PINHash), []byte("1234")); err != nil {
		t.Error("PIN 应以 bcrypt 哈希保存")
	}
}

func TestMemberService_Create_Errors(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *dto.CreateMemberRequest
		want error
	}{
		{"名称重复", &dto.CreateMemberRequest{Name: "Alice", PIN: "1234"}, ErrMemberNameExists},
		{"PIN 非数字", &dto.CreateMemberRequest{Name: "Bob", PIN: "12a4"}, ErrInvalidPIN},
		{"PIN 位数错误", &dto.CreateMemberRequest{Name: "Bob", PIN: "12345"}, ErrInvalidPIN},
		{"角色无效", &dto.CreateMemberRequest{Name: "Bob", Role: "owner", PIN: "1234"}, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

// ── GetByID / List ──

func TestMemberService_GetByID_IncludesGear(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", model.GearList{raidItem(model.SlotHead)})
	m := env.members.members["alice"]
	m.MainSpecLink = linkA

	resp, err := svc.GetByID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByID 应成功，但返回错误: %v", err)
	}
	if len(resp.MainSpec.Items) != 1 || resp.MainSpec.Items[0].Slot != string(model.SlotHead) {
		t.Errorf("主职配装不符: %+v", resp.MainSpec)
	}
	if resp.MainSpec.LinkURL == "" {
		t.Error("已导入链接时应返回页面地址")
	}

	if _, err := svc.GetByID(context.Background(), "ghost"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}

func TestMemberService_List(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("c", "Cid", nil)
	env.addMember("a", "Alice", nil)
	env.addMember("b", "Bob", nil)

	list, total, err := svc.List(context.Background(), &dto.MemberListRequest{
		PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 2},
	})
	if err != nil {
		t.Fatalf("List 应成功，但返回错误: %v", err)
	}
	if total != 3 || len(list) != 2 {
		t.Fatalf("期望 total=3、本页 2 条，实际 total=%d len=%d", total, len(list))
	}
	if list[0].Name != "Alice" || list[1].Name != "Bob" {
		t.Errorf("应按名称排序，实际: %+v", list)
	}
}

// ── Update / Delete / ResetPIN ──

func TestMemberService_Update(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", nil)
	env.addMember("bob", "Bob", nil)
	ctx := context.Background()

	role := model.RoleManager
	resp, err := svc.Update(ctx, "alice", &dto.UpdateMemberRequest{Role: &role})
	if err != nil {
		t.Fatalf("Update 应成功，但返回错误: %v", err)
	}
	if resp.Role != model.RoleManager {
		t.Errorf("期望角色 manager，实际: %s", resp.Role)
	}

	name := "Bob"
	if _, err := svc.Update(ctx, "alice", &dto.UpdateMemberRequest{Name: &name}); !errors.Is(err, ErrMemberNameExists) {
		t.Errorf("期望 ErrMemberNameExists，实际: %v", err)
	}

	// 保留自己的名字不算重复
	same := "Alice"
	if _, err := svc.Update(ctx, "alice", &dto.UpdateMemberRequest{Name: &same}); err != nil {
		t.Errorf("保持原名应成功，实际: %v", err)
	}
}

func TestMemberService_Delete(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", nil)
	ctx := context.Background()

	if err := svc.Delete(ctx, "alice", "alice"); !errors.Is(err, ErrMemberSelfDelete) {
		t.Errorf("期望 ErrMemberSelfDelete，实际: %v", err)
	}
	if err := svc.Delete(ctx, "alice", "admin"); err != nil {
		t.Fatalf("Delete 应成功，但返回错误: %v", err)
	}
	if err := svc.Delete(ctx, "alice", "admin"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际: %v", err)
	}
}

func TestMemberService_ResetPIN(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", nil)

	pin, err := svc.ResetPIN(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ResetPIN 应成功，但返回错误: %v", err)
	}
	if len(pin) != 4 {
		t.Errorf("期望 4 位 PIN，实际: %q", pin)
	}
	stored := env.members.members["alice"]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PINHash), []byte(pin)); err != nil {
		t.Error("新 PIN 应可通过校验")
	}
}

// ── 批量导入 ──

func TestMemberService_ParseImportFile(t *testing.T) {
	svc, _ := setupTestMemberService()
	buf := buildRosterFile(t, [][]string{
		{"名称", "角色", "PIN"},
		{"Alice", "admin", "1234"},
		{"", "", ""},
		{"Bob", "", ""},
	})

	rows, err := svc.ParseImportFile(buf)
	if err != nil {
		t.Fatalf("ParseImportFile 应成功，但返回错误: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("应跳过空行，期望 2 行，实际: %d", len(rows))
	}
	if rows[0].Name != "Alice" || rows[0].Role != "admin" || rows[0].PIN != "1234" || rows[0].Row != 2 {
		t.Errorf("第 1 行不符: %+v", rows[0])
	}
	if rows[1].Name != "Bob" || rows[1].Row != 4 {
		t.Errorf("第 2 行不符: %+v", rows[1])
	}
}

func TestMemberService_ParseImportFile_BadFormat(t *testing.T) {
	svc, _ := setupTestMemberService()

	if _, err := svc.ParseImportFile(bytes.NewBufferString("not an xlsx")); !errors.Is(err, ErrImportFileFormat) {
		t.Errorf("期望 ErrImportFileFormat，实际: %v", err)
	}

	buf := buildRosterFile(t, [][]string{{"角色"}, {"admin"}})
	if _, err := svc.ParseImportFile(buf); !errors.Is(err, ErrImportFileFormat) {
		t.Errorf("缺少名称列期望 ErrImportFileFormat，实际: %v", err)
	}
}

func TestMemberService_ImportMembers(t *testing.T) {
	svc, env := setupTestMemberService()
	env.addMember("alice", "Alice", nil)

	resp, err := svc.ImportMembers(context.Background(), []ImportMemberRow{
		{Row: 2, Name: "Bob", Role: "manager", PIN: "1111"},
		{Row: 3, Name: "Alice"},
		{Row: 4, Name: "Bob"},
		{Row: 5, Name: "Cid", Role: "owner"},
		{Row: 6, Name: "Dan", PIN: "abc"},
		{Row: 7, Name: "Eve"},
	})
	if err != nil {
		t.Fatalf("ImportMembers 应成功，但返回错误: %v", err)
	}
	if resp.Total != 6 || resp.Success != 2 || resp.Failed != 4 {
		t.Errorf("导入结果不符: %+v", resp)
	}
	if len(env.members.members) != 3 {
		t.Errorf("期望名单共 3 人，实际: %d", len(env.members.members))
	}
}

// ── EnsureAdmin ──

func TestMemberService_EnsureAdmin(t *testing.T) {
	svc, env := setupTestMemberService()
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "admin", "0000"); err != nil {
		t.Fatalf("EnsureAdmin 应成功，但返回错误: %v", err)
	}
	if len(env.members.members) != 1 {
		t.Fatalf("期望创建 1 名管理员，实际: %d", len(env.members.members))
	}
	for _, m := range env.members.members {
		if m.Role != model.RoleAdmin || m.Name != "admin" {
			t.Errorf("管理员信息不符: %+v", m)
		}
	}

	// 名单非空时不再创建
	if err := svc.EnsureAdmin(ctx, "root", ""); err != nil {
		t.Fatalf("EnsureAdmin 应成功，但返回错误: %v", err)
	}
	if len(env.members.members) != 1 {
		t.Errorf("名单非空时不应再创建，实际: %d", len(env.members.members))
	}
}

func TestMemberService_EnsureAdmin_RandomPIN(t *testing.T) {
	svc, env := setupTestMemberService()

	if err := svc.EnsureAdmin(context.Background(), "admin", ""); err != nil {
		t.Fatalf("EnsureAdmin 应成功，但返回错误: %v", err)
	}
	if len(env.members.members) != 1 {
		t.Errorf("未配置 PIN 时也应创建管理员，实际: %d", len(env.members.members))
	}
}
