package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"raid-loot/backend/internal/dto"
	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/repository"
)

// ── 成员模块业务错误 ──

var (
	ErrMemberNameExists = errors.New("成员名已存在")
	ErrInvalidPIN       = errors.New("PIN 必须为 4 位数字")
	ErrInvalidRole      = errors.New("角色无效")
	ErrMemberSelfDelete = errors.New("不能删除自己")
	ErrImportFileFormat = errors.New("导入文件格式错误")
)

// MemberService 成员业务接口
type MemberService interface {
	Create(ctx context.Context, req *dto.CreateMemberRequest) (*dto.MemberResponse, error)
	GetByID(ctx context.Context, id string) (*dto.MemberDetailResponse, error)
	List(ctx context.Context, req *dto.MemberListRequest) ([]dto.MemberResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateMemberRequest) (*dto.MemberResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	ResetPIN(ctx context.Context, id string) (string, error)
	ParseImportFile(reader io.Reader) ([]ImportMemberRow, error)
	ImportMembers(ctx context.Context, rows []ImportMemberRow) (*dto.ImportMemberResponse, error)
	// EnsureAdmin 名单为空时创建初始管理员
	EnsureAdmin(ctx context.Context, name, pin string) error
}

// ImportMemberRow Excel 导入解析后的单行数据
type ImportMemberRow struct {
	Row  int
	Name string
	Role string
	PIN  string
}

type memberService struct {
	repo   *repository.Repository
	source GearListSource
	logger *zap.Logger
}

// NewMemberService 创建 MemberService 实例
func NewMemberService(repo *repository.Repository, source GearListSource, logger *zap.Logger) MemberService {
	return &memberService{repo: repo, source: source, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *memberService) Create(ctx context.Context, req *dto.CreateMemberRequest) (*dto.MemberResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RoleMember
	}
	if !validRole(role) {
		return nil, ErrInvalidRole
	}
	hash, err := hashPIN(req.PIN)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := s.checkNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	member := &model.Member{Name: name, Role: role, PINHash: hash}
	if err := s.repo.Member.Create(ctx, member); err != nil {
		s.logger.Error("创建成员失败", zap.Error(err))
		return nil, err
	}

	return toMemberResponse(member), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *memberService) GetByID(ctx context.Context, id string) (*dto.MemberDetailResponse, error) {
	member, err := s.repo.Member.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return toMemberDetailResponse(member, s.source), nil
}

// ────────────────────── List ──────────────────────

func (s *memberService) List(ctx context.Context, req *dto.MemberListRequest) ([]dto.MemberResponse, int64, error) {
	members, total, err := s.repo.Member.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询成员列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		list = append(list, *toMemberResponse(&members[i]))
	}
	return list, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *memberService) Update(ctx context.Context, id string, req *dto.UpdateMemberRequest) (*dto.MemberResponse, error) {
	member, err := s.repo.Member.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.checkNameFree(ctx, name, member.MemberID); err != nil {
			return nil, err
		}
		member.Name = name
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, ErrInvalidRole
		}
		member.Role = *req.Role
	}
	if req.PIN != nil {
		hash, err := hashPIN(*req.PIN)
		if err != nil {
			return nil, err
		}
		member.PINHash = hash
	}

	if err := s.repo.Member.Update(ctx, member); err != nil {
		s.logger.Error("更新成员失败", zap.String("id", id), zap.Error(err))
		return nil, persistErr(err)
	}
	return toMemberResponse(member), nil
}

// ────────────────────── Delete ──────────────────────

func (s *memberService) Delete(ctx context.Context, id string, callerID string) error {
	if id == callerID {
		return ErrMemberSelfDelete
	}
	if err := s.repo.Member.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		s.logger.Error("删除成员失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ResetPIN ──────────────────────

func (s *memberService) ResetPIN(ctx context.Context, id string) (string, error) {
	member, err := s.repo.Member.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMemberNotFound
		}
		return "", err
	}

	pin, err := generatePIN()
	if err != nil {
		return "", err
	}
	hash, err := hashPIN(pin)
	if err != nil {
		return "", err
	}
	member.PINHash = hash

	if err := s.repo.Member.Update(ctx, member); err != nil {
		s.logger.Error("重置 PIN 失败", zap.String("id", id), zap.Error(err))
		return "", persistErr(err)
	}
	return pin, nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 200

// ParseImportFile 解析成员名单 Excel（表头：名称/角色/PIN，角色与 PIN 可选）
func (s *memberService) ParseImportFile(reader io.Reader) ([]ImportMemberRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: 无法解析 Excel 文件", ErrImportFileFormat)
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取工作表失败", ErrImportFileFormat)
	}
	if len(excelRows) < 2 {
		return nil, fmt.Errorf("%w: 无数据行（第一行为表头）", ErrImportFileFormat)
	}

	colIndex := parseHeaderIndex(excelRows[0])
	if colIndex["name"] < 0 {
		return nil, fmt.Errorf("%w: 表头缺少名称列", ErrImportFileFormat)
	}

	cell := func(row []string, key string) string {
		if idx := colIndex[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []ImportMemberRow
	for i := 1; i < len(excelRows); i++ {
		item := ImportMemberRow{
			Row:  i + 1,
			Name: cell(excelRows[i], "name"),
			Role: cell(excelRows[i], "role"),
			PIN:  cell(excelRows[i], "pin"),
		}
		// 跳过全空行
		if item.Name == "" && item.Role == "" && item.PIN == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: 无数据行", ErrImportFileFormat)
	}
	if len(rows) > maxImportRows {
		return nil, fmt.Errorf("%w: 数据行数超过上限 %d 行", ErrImportFileFormat, maxImportRows)
	}
	return rows, nil
}

// parseHeaderIndex 解析表头，返回列名 -> 列索引映射
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{"name": -1, "role": -1, "pin": -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "名称", "姓名", "name":
			idx["name"] = i
		case "角色", "role":
			idx["role"] = i
		case "pin":
			idx["pin"] = i
		}
	}
	return idx
}

// ────────────────────── ImportMembers ──────────────────────

// ImportMembers 批量创建成员；未提供 PIN 的行随机生成（结果不回显，需管理员重置）
func (s *memberService) ImportMembers(ctx context.Context, rows []ImportMemberRow) (*dto.ImportMemberResponse, error) {
	resp := &dto.ImportMemberResponse{Total: len(rows)}

	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportMemberError{Row: row, Reason: reason})
	}

	// 第一阶段：数据预校验
	var valid []*model.Member
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Name == "" {
			fail(row.Row, "名称为空")
			continue
		}
		if seen[row.Name] {
			fail(row.Row, fmt.Sprintf("文件内名称重复: %s", row.Name))
			continue
		}
		role := row.Role
		if role == "" {
			role = model.RoleMember
		}
		if !validRole(role) {
			fail(row.Row, fmt.Sprintf("角色无效: %s", row.Role))
			continue
		}
		if _, err := s.repo.Member.GetByName(ctx, row.Name); err == nil {
			fail(row.Row, fmt.Sprintf("成员名已存在: %s", row.Name))
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		pin := row.PIN
		if pin == "" {
			var err error
			if pin, err = generatePIN(); err != nil {
				return nil, err
			}
		}
		hash, err := hashPIN(pin)
		if err != nil {
			fail(row.Row, ErrInvalidPIN.Error())
			continue
		}

		seen[row.Name] = true
		valid = append(valid, &model.Member{Name: row.Name, Role: role, PINHash: hash})
	}

	// 第二阶段：事务内批量写入，任一失败全部回滚
	if len(valid) > 0 {
		err := s.repo.RunInTx(ctx, func(txRepo *repository.Repository) error {
			for _, m := range valid {
				if err := txRepo.Member.Create(ctx, m); err != nil {
					return fmt.Errorf("写入成员 %s 失败，已回滚全部导入: %w", m.Name, err)
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("导入成员失败", zap.Error(err))
			return nil, err
		}
		resp.Success = len(valid)
	}

	return resp, nil
}

// ────────────────────── EnsureAdmin ──────────────────────

func (s *memberService) EnsureAdmin(ctx context.Context, name, pin string) error {
	if name == "" {
		return nil
	}
	_, total, err := s.repo.Member.List(ctx, 0, 1)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	// 未配置 PIN 时随机生成，仅在此处输出一次
	if pin == "" {
		if pin, err = generatePIN(); err != nil {
			return err
		}
		s.logger.Warn("未配置初始管理员 PIN，已随机生成", zap.String("name", name), zap.String("pin", pin))
	}
	hash, err := hashPIN(pin)
	if err != nil {
		return err
	}
	if err := s.repo.Member.Create(ctx, &model.Member{Name: name, Role: model.RoleAdmin, PINHash: hash}); err != nil {
		return err
	}
	s.logger.Info("已创建初始管理员", zap.String("name", name))
	return nil
}

// ── 内部辅助方法 ──

// findMember 按 ID 读取成员，不存在时返回 ErrMemberNotFound
func findMember(ctx context.Context, repo *repository.Repository, id string) (*model.Member, error) {
	member, err := repo.Member.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *memberService) checkNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.Member.GetByName(ctx, name)
	if err == nil {
		if existing.MemberID != selfID {
			return ErrMemberNameExists
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func validRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleManager || role == model.RoleMember
}

// hashPIN 校验 4 位数字后做 bcrypt 哈希
func hashPIN(pin string) (string, error) {
	if len(pin) != 4 {
		return "", ErrInvalidPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", ErrInvalidPIN
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// generatePIN 生成随机 4 位数字 PIN
func generatePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// canEditGear 本人或管理者可修改配装
func canEditGear(callerID, callerRole, memberID string) bool {
	return callerID == memberID || callerRole == model.RoleAdmin || callerRole == model.RoleManager
}

// toMemberResponse 将 model.Member 转换为 dto.MemberResponse
func toMemberResponse(m *model.Member) *dto.MemberResponse {
	return &dto.MemberResponse{ID: m.MemberID, Name: m.Name, Role: m.Role}
}

// toMemberDetailResponse 成员详情，含两套配装
func toMemberDetailResponse(m *model.Member, source GearListSource) *dto.MemberDetailResponse {
	return &dto.MemberDetailResponse{
		MemberResponse: *toMemberResponse(m),
		MainSpec:       toGearRecordResponse(m.Record(model.SpecMain), source),
		OffSpec:        toGearRecordResponse(m.Record(model.SpecOff), source),
		Version:        m.Version,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toGearRecordResponse(rec model.GearRecord, source GearListSource) dto.GearRecordResponse {
	resp := dto.GearRecordResponse{
		Link:  rec.Link,
		Items: make([]dto.GearItemResponse, 0, len(rec.Items)),
	}
	if rec.Link != "" && source != nil {
		if link, err := ParseGearLink(rec.Link); err == nil {
			resp.LinkURL = source.PageURL(link)
		}
	}
	for _, it := range rec.Items {
		resp.Items = append(resp.Items, toGearItemResponse(it))
	}
	return resp
}

func toGearItemResponse(it model.GearItem) dto.GearItemResponse {
	return dto.GearItemResponse{
		Slot:                    string(it.Slot),
		ItemName:                it.ItemName,
		ItemType:                string(it.ItemType),
		IsAcquired:              it.IsAcquired,
		UpgradeMaterialAcquired: it.UpgradeMaterialAcquired,
	}
}
