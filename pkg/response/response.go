package response

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// 业务码：0 成功；1xxxx 按模块分段（见 handler 各模块错误码表）；50000 未分类内部错误
const (
	CodeOK           = 0
	CodeRateLimited  = 10004
	CodeBodyTooLarge = 10005
	CodeInternal     = 50000
)

const successMessage = "success"

// Response 统一响应结构
// Details 仅在上游失败等需要给出排查线索时出现
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Pagination 分页元数据（成员列表、分配记录列表）
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData 分页响应数据
type PageData struct {
	List       interface{} `json:"list"`
	Pagination Pagination  `json:"pagination"`
}

// ── 成功响应 ──

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: successMessage, Data: data})
}

// Created 201，用于新建成员、周次与分配记录
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: successMessage, Data: data})
}

// OKPage 200 分页；pageSize <= 0 时 total_pages 为 0
func OKPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, PageData{
		List: list,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// File 直接输出文件内容（周导出 xlsx、iCalendar 订阅）
// inline 为 true 时浏览器/日历客户端可直接打开
func File(c *gin.Context, contentType, filename string, data []byte, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition+"; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}

// ── 错误响应 ──

func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{Code: code, Message: message})
}

func ErrorWithDetails(c *gin.Context, httpStatus int, code int, message, details string) {
	c.JSON(httpStatus, Response{Code: code, Message: message, Details: details})
}

// ── 常见快捷方式 ──

// BadRequest 400：参数、链接、层号、配装类型无效
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401：未登录、PIN 错误或令牌已注销
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403：非管理员修改他人配装或管理成员
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409：本层掉落已分配、重复撤销、写入繁忙或配装被并发修改
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// PayloadTooLarge 413：导入文件或请求体超限
func PayloadTooLarge(c *gin.Context) {
	Error(c, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "请求体过大")
}

// Unprocessable 422：配装中没有可获取的对应槽位
func Unprocessable(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnprocessableEntity, code, message)
}

// TooManyRequests 429：登录与配装导入限流
func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, CodeRateLimited, "请求过于频繁，请稍后再试")
}

// BadGateway 502：外部配装清单获取失败，可稍后重试
func BadGateway(c *gin.Context, code int, message, details string) {
	ErrorWithDetails(c, http.StatusBadGateway, code, message, details)
}

func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "服务器内部错误")
}
