package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"raid-loot/backend/internal/model"
	"raid-loot/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoAssignments = errors.New("该周暂无分配记录")
	ErrExportGenerateFail  = errors.New("生成导出文件失败")
)

const calendarProductID = "-//raid-loot//loot calendar//ZH"

// ExportService 导出业务接口
//
// 设计说明：
//   - 周账本导出为 Excel (.xlsx)，以 bytes.Buffer 返回，由 Handler 层设置响应头
//   - 日历订阅为 iCalendar 文本，每个周次一个全天事件
type ExportService interface {
	// ExportWeek 导出某周账本（含已撤销条目）与 Extra 统计
	ExportWeek(ctx context.Context, weekNumber int) (*bytes.Buffer, string, error)
	// ExportCalendar 导出全部周次的日历
	ExportCalendar(ctx context.Context) (string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportWeek — 导出周账本为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "分配记录"：按分配时间排列的全部条目
//   - Sheet "Extra统计"：本周未撤销 Extra 分配按（成员, 掉落）计数
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportWeek(ctx context.Context, weekNumber int) (*bytes.Buffer, string, error) {
	// 1. 确认周次存在
	if _, err := s.repo.Week.GetByNumber(ctx, weekNumber); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrWeekNotFound
		}
		return nil, "", err
	}

	// 2. 查询该周全部分配
	entries, _, err := s.repo.Assignment.List(ctx, repository.AssignmentFilter{
		WeekNumber:    &weekNumber,
		IncludeUndone: true,
	})
	if err != nil {
		s.logger.Error("查询周账本失败", zap.Int("week", weekNumber), zap.Error(err))
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", ErrExportNoAssignments
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	ledgerSheet := "分配记录"
	idx, _ := f.NewSheet(ledgerSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"时间", "层", "成员", "掉落", "配装", "物品类型", "来源", "状态"}
	widths := []float64{20, 6, 16, 20, 12, 16, 10, 10}
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(ledgerSheet, col, col, widths[i])
		f.SetCellValue(ledgerSheet, cell(col, 1), h)
	}
	f.SetCellStyle(ledgerSheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	extraCounts := make(map[[2]string]int)
	row := 2
	for i := range entries {
		e := &entries[i]
		f.SetCellValue(ledgerSheet, cell("A", row), e.AssignedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(ledgerSheet, cell("B", row), floorLabel(e.FloorNumber))
		f.SetCellValue(ledgerSheet, cell("C", row), memberLabel(e))
		f.SetCellValue(ledgerSheet, cell("D", row), dropLabel(e))
		f.SetCellValue(ledgerSheet, cell("E", row), string(e.SpecType))
		if e.ItemType != nil {
			f.SetCellValue(ledgerSheet, cell("F", row), string(*e.ItemType))
		}
		source := "分配"
		if e.IsManualEdit {
			source = "手动编辑"
		}
		f.SetCellValue(ledgerSheet, cell("G", row), source)
		status := "有效"
		if e.IsUndone {
			status = "已撤销"
		}
		f.SetCellValue(ledgerSheet, cell("H", row), status)
		row++

		if e.SpecType == model.SpecExtra && !e.IsUndone {
			extraCounts[[2]string{memberLabel(e), dropLabel(e)}]++
		}
	}

	extraSheet := "Extra统计"
	f.NewSheet(extraSheet)
	f.SetColWidth(extraSheet, "A", "A", 16)
	f.SetColWidth(extraSheet, "B", "B", 20)
	f.SetColWidth(extraSheet, "C", "C", 8)
	f.SetCellValue(extraSheet, "A1", "成员")
	f.SetCellValue(extraSheet, "B1", "掉落")
	f.SetCellValue(extraSheet, "C1", "次数")
	f.SetCellStyle(extraSheet, "A1", "C1", headerStyle)

	keys := make([][2]string, 0, len(extraCounts))
	for k := range extraCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for i, k := range keys {
		f.SetCellValue(extraSheet, cell("A", i+2), k[0])
		f.SetCellValue(extraSheet, cell("B", i+2), k[1])
		f.SetCellValue(extraSheet, cell("C", i+2), extraCounts[k])
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("分配记录_第%d周.xlsx", weekNumber)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar — 导出周次日历
// ═══════════════════════════════════════════════════════════
//
// 每个周次生成一个从开始日起为期 7 天的全天事件，
// 描述中按时间列出该周未撤销的分配

func (s *exportService) ExportCalendar(ctx context.Context) (string, error) {
	weeks, err := s.repo.Week.List(ctx)
	if err != nil {
		s.logger.Error("查询周次列表失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("Raid Loot")

	for i := range weeks {
		w := &weeks[i]
		number := w.WeekNumber
		entries, _, err := s.repo.Assignment.List(ctx, repository.AssignmentFilter{WeekNumber: &number})
		if err != nil {
			s.logger.Error("查询周账本失败", zap.Int("week", number), zap.Error(err))
			return "", err
		}

		lines := make([]string, 0, len(entries))
		for j := range entries {
			e := &entries[j]
			lines = append(lines, fmt.Sprintf("%s %s → %s (%s)",
				floorLabel(e.FloorNumber), dropLabel(e), memberLabel(e), e.SpecType))
		}

		evt := cal.AddEvent(fmt.Sprintf("week-%d@raid-loot", number))
		evt.SetDtStampTime(w.UpdatedAt)
		evt.SetAllDayStartAt(w.StartedAt)
		evt.SetAllDayEndAt(w.StartedAt.AddDate(0, 0, 7))
		evt.SetSummary(fmt.Sprintf("第%d周 · %d 件分配", number, len(entries)))
		if len(lines) > 0 {
			evt.SetDescription(strings.Join(lines, "\n"))
		}
	}

	return cal.Serialize(), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func floorLabel(floor int) string {
	if floor == model.ManualEditFloor {
		return "手动"
	}
	return fmt.Sprintf("%d层", floor)
}

// memberLabel 成员已删除时回退为成员 ID
func memberLabel(a *model.LootAssignment) string {
	if a.Member != nil && a.Member.Name != "" {
		return a.Member.Name
	}
	return a.MemberID
}

func dropLabel(a *model.LootAssignment) string {
	if a.IsUpgradeMaterial {
		label := string(a.Material()) + " 强化材料"
		if a.Slot != nil {
			label += "·" + string(*a.Slot)
		}
		return label
	}
	if a.Slot != nil {
		return string(*a.Slot)
	}
	return ""
}
