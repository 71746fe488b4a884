package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/repository"
	pkgerrors "raid-loot/backend/pkg/errors"
)

// ── Mock MemberRepository ──
//
// 存储副本而非指针，模拟数据库读写语义（含乐观锁版本号）

type mockMemberRepo struct {
	members map[string]*model.Member
	seq     int
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*model.Member)}
}

func (m *mockMemberRepo) Create(_ context.Context, member *model.Member) error {
	if member.MemberID == "" {
		m.seq++
		member.MemberID = fmt.Sprintf("member-%d", m.seq)
	}
	if member.Version == 0 {
		member.Version = 1
	}
	cp := *member
	m.members[member.MemberID] = &cp
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*model.Member, error) {
	if mem, ok := m.members[id]; ok {
		cp := *mem
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) GetByName(_ context.Context, name string) (*model.Member, error) {
	for _, mem := range m.members {
		if mem.Name == name {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) Update(_ context.Context, member *model.Member) error {
	stored, ok := m.members[member.MemberID]
	if !ok || stored.Version != member.Version {
		return pkgerrors.ErrOptimisticLock
	}
	member.Version++
	cp := *member
	m.members[member.MemberID] = &cp
	return nil
}

func (m *mockMemberRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.members[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.members, id)
	return nil
}

func (m *mockMemberRepo) List(ctx context.Context, offset, limit int) ([]model.Member, int64, error) {
	all, _ := m.ListAll(ctx)
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Member{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockMemberRepo) ListAll(_ context.Context) ([]model.Member, error) {
	all := make([]model.Member, 0, len(m.members))
	for _, mem := range m.members {
		all = append(all, *mem)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// ── Mock WeekRepository ──

type mockWeekRepo struct {
	weeks map[int]*model.Week
}

func newMockWeekRepo() *mockWeekRepo {
	return &mockWeekRepo{weeks: make(map[int]*model.Week)}
}

func (m *mockWeekRepo) Create(_ context.Context, week *model.Week) error {
	if _, ok := m.weeks[week.WeekNumber]; ok {
		return fmt.Errorf("duplicate week %d", week.WeekNumber)
	}
	cp := *week
	m.weeks[week.WeekNumber] = &cp
	return nil
}

func (m *mockWeekRepo) GetByNumber(_ context.Context, number int) (*model.Week, error) {
	if w, ok := m.weeks[number]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeekRepo) GetCurrent(_ context.Context) (*model.Week, error) {
	for _, w := range m.weeks {
		if w.IsCurrent {
			cp := *w
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeekRepo) GetLatest(ctx context.Context) (*model.Week, error) {
	list, _ := m.List(ctx)
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &list[0], nil
}

func (m *mockWeekRepo) List(_ context.Context) ([]model.Week, error) {
	list := make([]model.Week, 0, len(m.weeks))
	for _, w := range m.weeks {
		list = append(list, *w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].WeekNumber > list[j].WeekNumber })
	return list, nil
}

func (m *mockWeekRepo) MaxNumber(_ context.Context) (int, error) {
	max := 0
	for n := range m.weeks {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (m *mockWeekRepo) ClearCurrent(_ context.Context) error {
	for _, w := range m.weeks {
		w.IsCurrent = false
	}
	return nil
}

func (m *mockWeekRepo) SetCurrent(_ context.Context, number int) error {
	w, ok := m.weeks[number]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	w.IsCurrent = true
	return nil
}

func (m *mockWeekRepo) Delete(_ context.Context, number int) error {
	delete(m.weeks, number)
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	entries map[string]*model.LootAssignment
	order   []string
	members *mockMemberRepo // 用于模拟 Preload("Member")
	seq     int

	createErr error // 非空时 Create 直接返回，模拟数据库约束冲突
}

func newMockAssignmentRepo(members *mockMemberRepo) *mockAssignmentRepo {
	return &mockAssignmentRepo{
		entries: make(map[string]*model.LootAssignment),
		members: members,
	}
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.LootAssignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if a.AssignmentID == "" {
		m.seq++
		a.AssignmentID = fmt.Sprintf("assign-%d", m.seq)
	}
	cp := *a
	m.entries[a.AssignmentID] = &cp
	m.order = append(m.order, a.AssignmentID)
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.LootAssignment, error) {
	if a, ok := m.entries[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// all 按写入顺序返回满足条件的条目副本
func (m *mockAssignmentRepo) all(match func(a *model.LootAssignment) bool) []model.LootAssignment {
	var list []model.LootAssignment
	for _, id := range m.order {
		a, ok := m.entries[id]
		if !ok || !match(a) {
			continue
		}
		list = append(list, *a)
	}
	return list
}

func (m *mockAssignmentRepo) ListActiveByFloor(_ context.Context, week, floor int) ([]model.LootAssignment, error) {
	return m.all(func(a *model.LootAssignment) bool {
		return a.WeekNumber == week && a.FloorNumber == floor && !a.IsUndone && !a.IsManualEdit
	}), nil
}

func (m *mockAssignmentRepo) FindActiveManualEdit(_ context.Context, week int, memberID string, slot model.GearSlot, isMaterial bool, spec model.SpecType) (*model.LootAssignment, error) {
	list := m.all(func(a *model.LootAssignment) bool {
		return a.IsManualEdit && !a.IsUndone &&
			a.WeekNumber == week && a.MemberID == memberID &&
			a.Slot != nil && *a.Slot == slot &&
			a.IsUpgradeMaterial == isMaterial && a.SpecType == spec
	})
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &list[len(list)-1], nil
}

func (m *mockAssignmentRepo) List(_ context.Context, filter repository.AssignmentFilter) ([]model.LootAssignment, int64, error) {
	list := m.all(func(a *model.LootAssignment) bool {
		if filter.WeekNumber != nil && a.WeekNumber != *filter.WeekNumber {
			return false
		}
		if filter.MemberID != "" && a.MemberID != filter.MemberID {
			return false
		}
		return filter.IncludeUndone || !a.IsUndone
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].WeekNumber > list[j].WeekNumber })
	if m.members != nil {
		for i := range list {
			if mem, ok := m.members.members[list[i].MemberID]; ok {
				cp := *mem
				list[i].Member = &cp
			}
		}
	}

	total := int64(len(list))
	if filter.Limit > 0 {
		if filter.Offset >= len(list) {
			return []model.LootAssignment{}, total, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(list) {
			end = len(list)
		}
		list = list[filter.Offset:end]
	}
	return list, total, nil
}

func (m *mockAssignmentRepo) ListActiveExtra(_ context.Context) ([]model.LootAssignment, error) {
	return m.all(func(a *model.LootAssignment) bool {
		return a.SpecType == model.SpecExtra && !a.IsUndone
	}), nil
}

func (m *mockAssignmentRepo) MarkUndone(_ context.Context, id string) error {
	a, ok := m.entries[id]
	if !ok || a.IsUndone {
		return pkgerrors.ErrOptimisticLock
	}
	a.IsUndone = true
	return nil
}

func (m *mockAssignmentRepo) DeleteByWeek(_ context.Context, week int) error {
	for id, a := range m.entries {
		if a.WeekNumber == week {
			delete(m.entries, id)
		}
	}
	return nil
}

// ── Fake GearListSource ──

type fakeGearSource struct {
	lists map[string]model.GearList // key: canonical link
	err   error
	calls int
}

func newFakeGearSource() *fakeGearSource {
	return &fakeGearSource{lists: make(map[string]model.GearList)}
}

func (f *fakeGearSource) Fetch(_ context.Context, link GearLink) (model.GearList, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	list, ok := f.lists[link.Canonical()]
	if !ok {
		return nil, ErrInvalidLink
	}
	return list.Clone(), nil
}

func (f *fakeGearSource) PageURL(link GearLink) string {
	return "https://xivgear.app/?page=" + link.Page()
}

// ── 测试环境 ──

type testEnv struct {
	repo        *repository.Repository
	members     *mockMemberRepo
	weeks       *mockWeekRepo
	assignments *mockAssignmentRepo
	source      *fakeGearSource
	locker      WriteLocker
	logger      *zap.Logger
}

func newTestEnv() *testEnv {
	members := newMockMemberRepo()
	weeks := newMockWeekRepo()
	assignments := newMockAssignmentRepo(members)
	return &testEnv{
		repo: &repository.Repository{
			Member:     members,
			Week:       weeks,
			Assignment: assignments,
		},
		members:     members,
		weeks:       weeks,
		assignments: assignments,
		source:      newFakeGearSource(),
		locker:      NewLocalLocker(),
		logger:      zap.NewNop(),
	}
}

// addMember 直接写入一个带主职配装的成员
func (e *testEnv) addMember(id, name string, main model.GearList) *model.Member {
	m := &model.Member{MemberID: id, Name: name, Role: model.RoleMember}
	m.ApplyRecord(model.SpecMain, model.GearRecord{Items: main})
	_ = e.members.Create(context.Background(), m)
	return m
}

// setOffSpec 覆盖成员的副职配装
func (e *testEnv) setOffSpec(id string, off model.GearList) {
	m := e.members.members[id]
	m.ApplyRecord(model.SpecOff, model.GearRecord{Items: off})
}

// startWeek 创建并设为当前周
func (e *testEnv) startWeek(number int) {
	_ = e.weeks.ClearCurrent(context.Background())
	_ = e.weeks.Create(context.Background(), &model.Week{WeekNumber: number, IsCurrent: true})
}

// gear 读取成员当前某套配装
func (e *testEnv) gear(id string, spec model.SpecType) model.GearList {
	return e.members.members[id].Record(spec).Items
}

func raidItem(slot model.GearSlot) model.GearItem {
	return model.GearItem{Slot: slot, ItemName: "Raid " + string(slot), ItemType: model.ItemTypeRaid}
}

func tomeItem(slot model.GearSlot) model.GearItem {
	return model.GearItem{Slot: slot, ItemName: "Augmented " + string(slot), ItemType: model.ItemTypeAugmentedTome}
}

func itemBySlot(list model.GearList, slot model.GearSlot) model.GearItem {
	i, ok := list.Find(slot)
	if !ok {
		return model.GearItem{}
	}
	return list[i]
}
