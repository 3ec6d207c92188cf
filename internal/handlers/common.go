package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cspulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func newPaginatedResponse(data interface{}, total int64, page, pageSize int) PaginatedResponse {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginatedResponse{
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}
}

// statusForError 将服务层错误类别映射为 HTTP 状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrFatigueLimitReached):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误类别写出响应，仅 5xx 记录错误日志
func respondError(c *gin.Context, logger *logrus.Logger, title string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s: %v", title, err)
	}
	c.JSON(status, ErrorResponse{
		Error:   title,
		Message: err.Error(),
		Code:    status,
	})
}

func badRequest(c *gin.Context, title, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   title,
		Message: message,
		Code:    http.StatusBadRequest,
	})
}

// parseIDParam 解析路径中的正整数 ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name, "ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
