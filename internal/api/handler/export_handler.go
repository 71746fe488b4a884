package handler

import (
	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	icsContentType  = "text/calendar; charset=utf-8"
)

var exportErrCodes = []errCode{
	{service.ErrWeekNotFound, 16001},
	{service.ErrExportNoAssignments, 16002},
}

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWeek 导出某周分配记录
// GET /api/v1/export/weeks/:number
func (h *ExportHandler) ExportWeek(c *gin.Context) {
	number, ok := weekNumberParam(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportWeek(c.Request.Context(), number)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	response.File(c, xlsxContentType, filename, buf.Bytes(), false)
}

// Calendar 全部周次的 iCalendar 订阅
// GET /api/v1/export/calendar.ics
func (h *ExportHandler) Calendar(c *gin.Context) {
	out, err := h.exportSvc.ExportCalendar(c.Request.Context())
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.File(c, icsContentType, "raid-loot.ics", []byte(out), true)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	respondError(c, err, codeOf(err, exportErrCodes, 16000))
}
