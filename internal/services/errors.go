package services

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrExpired             = errors.New("expired")
	ErrFatigueLimitReached = errors.New("survey fatigue limit reached")
	ErrValidation          = errors.New("validation error")
)

var (
	// ErrSurveyNotFound 表示调查不存在或 token 无效
	ErrSurveyNotFound = fmt.Errorf("survey request %w", ErrNotFound)
	// ErrSurveyExpired 表示调查已过期
	ErrSurveyExpired = fmt.Errorf("survey request %w", ErrExpired)
	// ErrSurveyCompleted 表示调查已完成
	ErrSurveyCompleted = fmt.Errorf("%w: survey request already completed", ErrConflict)
	// ErrSurveyCancelled 表示调查已取消
	ErrSurveyCancelled = fmt.Errorf("%w: survey request cancelled", ErrConflict)
	// ErrSurveyNotPending 非 pending 状态不允许迁移
	ErrSurveyNotPending = fmt.Errorf("%w: survey request is not pending", ErrConflict)
	// ErrTicketSurveyExists 同一工单只允许一个未结束的调查
	ErrTicketSurveyExists = fmt.Errorf("%w: an open survey request already exists for this ticket", ErrConflict)

	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrTicketNotFound   = fmt.Errorf("ticket %w", ErrNotFound)
	ErrAlertNotFound    = fmt.Errorf("alert %w", ErrNotFound)

	ErrAlertResolved = fmt.Errorf("%w: alert already resolved", ErrConflict)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ItemError 批处理中单个实体的失败记录
type ItemError struct {
	Component string `json:"component"`
	EntityID  uint   `json:"entity_id,omitempty"`
	Message   string `json:"message"`
}

func (e ItemError) Error() string {
	if e.EntityID == 0 {
		return fmt.Sprintf("%s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("%s[%d]: %s", e.Component, e.EntityID, e.Message)
}
