package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/response"
)

// errCode 业务错误 → 业务码
type errCode struct {
	err  error
	code int
}

// 跨模块共享的业务码
var commonErrCodes = []errCode{
	{service.ErrNoPermission, 10003},
	{service.ErrWriteBusy, 10006},
	{service.ErrConcurrentUpdate, 10007},
}

// codeOf 依次匹配模块表与共享表，未命中时返回 fallback
func codeOf(err error, table []errCode, fallback int) int {
	for _, tables := range [][]errCode{table, commonErrCodes} {
		for _, ec := range tables {
			if errors.Is(err, ec.err) {
				return ec.code
			}
		}
	}
	return fallback
}

// respondError 按错误类别写出 HTTP 响应
func respondError(c *gin.Context, err error, code int) {
	msg := err.Error()
	switch service.KindOf(err) {
	case service.KindNotFound:
		response.NotFound(c, code, msg)
	case service.KindInvalidInput:
		response.BadRequest(c, code, msg)
	case service.KindConflict:
		response.Conflict(c, code, msg)
	case service.KindNoMatchingItem:
		response.Unprocessable(c, code, msg)
	case service.KindUpstreamFailure:
		response.BadGateway(c, code, "获取外部配装清单失败，请稍后重试", msg)
	case service.KindUnauthorized:
		response.Unauthorized(c, code, msg)
	case service.KindForbidden:
		response.Forbidden(c, code, msg)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
