package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cspulse/internal/metrics"
	"cspulse/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dedupDayLayout = "2006-01-02"

// AlertOptions 告警巡检参数
type AlertOptions struct {
	ContractWindowDays   int
	LicenseWindowDays    int
	InactivityWindowDays int
	Location             *time.Location // 去重自然日与到期天数使用的时区
}

// DefaultAlertOptions 默认 30 天窗口，UTC
func DefaultAlertOptions() AlertOptions {
	return AlertOptions{
		ContractWindowDays:   defaultExpiryWindowDays,
		LicenseWindowDays:    defaultExpiryWindowDays,
		InactivityWindowDays: defaultInactivityWindowDays,
		Location:             time.UTC,
	}
}

// AlertService 告警服务，所有告警都经过 RaiseAlert 去重
type AlertService struct {
	db     *gorm.DB
	logger *logrus.Logger
	tracer trace.Tracer
	now    func() time.Time
	opts   AlertOptions
}

// NewAlertService 创建告警服务
func NewAlertService(db *gorm.DB, logger *logrus.Logger) *AlertService {
	if logger == nil {
		logger = logrus.New()
	}

	return &AlertService{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("cspulse.alerts"),
		now:    func() time.Time { return time.Now().UTC() },
		opts:   DefaultAlertOptions(),
	}
}

// SetClock 替换时间源
func (s *AlertService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetOptions 覆盖巡检参数，零值字段保持默认
func (s *AlertService) SetOptions(opts AlertOptions) {
	def := DefaultAlertOptions()
	if opts.ContractWindowDays <= 0 {
		opts.ContractWindowDays = def.ContractWindowDays
	}
	if opts.LicenseWindowDays <= 0 {
		opts.LicenseWindowDays = def.LicenseWindowDays
	}
	if opts.InactivityWindowDays <= 0 {
		opts.InactivityWindowDays = def.InactivityWindowDays
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	s.opts = opts
}

// RaiseResult 去重闸门的结果。Created 为 false 表示当日已有同类未解决告警。
type RaiseResult struct {
	Alert   *models.Alert `json:"alert"`
	Created bool          `json:"created"`
}

// AlertListRequest 告警列表请求
type AlertListRequest struct {
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
	CustomerID *uint  `form:"customer_id"`
	AlertType  string `form:"alert_type"`
	Unresolved *bool  `form:"unresolved"`
}

// DedupDay 返回 t 在配置时区下的自然日
func (s *AlertService) DedupDay(t time.Time) string {
	return t.In(locOrUTC(s.opts.Location)).Format(dedupDayLayout)
}

func validateCandidate(c AlertCandidate) error {
	if c.CustomerID == 0 {
		return validationError("customer_id is required")
	}
	if !c.AlertType.Valid() {
		return validationError("invalid alert type: %s", c.AlertType)
	}
	if !c.Severity.Valid() {
		return validationError("invalid alert severity: %s", c.Severity)
	}
	if strings.TrimSpace(c.Title) == "" {
		return validationError("alert title is required")
	}
	return nil
}

// RaiseAlert 去重闸门：同一客户、类型、范围在当日已有未解决告警时丢弃候选。
// 查询与写入在同一事务内，部分唯一索引保证并发巡检不会重复写入。
func (s *AlertService) RaiseAlert(ctx context.Context, candidate AlertCandidate) (*RaiseResult, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.raise")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("alert.customer_id", int64(candidate.CustomerID)),
		attribute.String("alert.type", string(candidate.AlertType)),
		attribute.String("alert.scope", candidate.Scope),
	)

	if err := validateCandidate(candidate); err != nil {
		return nil, err
	}

	now := s.now()
	day := s.DedupDay(now)
	result := &RaiseResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customerCount int64
		if err := tx.Model(&models.Customer{}).Where("id = ?", candidate.CustomerID).Count(&customerCount).Error; err != nil {
			return fmt.Errorf("failed to check customer: %w", err)
		}
		if customerCount == 0 {
			return ErrCustomerNotFound
		}

		existing, err := findOpenAlert(tx, candidate, day)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Alert = existing
			return nil
		}

		alert := &models.Alert{
			CustomerID:  candidate.CustomerID,
			AlertType:   candidate.AlertType,
			Scope:       candidate.Scope,
			DedupDay:    day,
			Severity:    candidate.Severity,
			Title:       candidate.Title,
			Description: candidate.Description,
			CreatedAt:   now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(alert)
		if res.Error != nil {
			return fmt.Errorf("failed to create alert: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// 并发写入方先落库
			existing, err := findOpenAlert(tx, candidate, day)
			if err != nil {
				return err
			}
			result.Alert = existing
			return nil
		}

		result.Alert = alert
		result.Created = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if result.Created {
		metrics.IncAlertCreated(string(candidate.AlertType))
		s.logger.Infof("Alert raised: customer=%d type=%s scope=%q severity=%s",
			candidate.CustomerID, candidate.AlertType, candidate.Scope, candidate.Severity)
	} else {
		metrics.IncAlertSuppressed(string(candidate.AlertType))
		s.logger.Debugf("Alert suppressed by dedup: customer=%d type=%s scope=%q day=%s",
			candidate.CustomerID, candidate.AlertType, candidate.Scope, day)
	}
	span.SetAttributes(attribute.Bool("alert.created", result.Created))

	return result, nil
}

func findOpenAlert(tx *gorm.DB, c AlertCandidate, day string) (*models.Alert, error) {
	var alert models.Alert
	err := tx.Where("customer_id = ? AND alert_type = ? AND scope = ? AND dedup_day = ? AND is_resolved = ?",
		c.CustomerID, c.AlertType, c.Scope, day, false).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open alerts: %w", err)
	}
	return &alert, nil
}

// ResolveAlert 解决告警，只能解决一次
func (s *AlertService) ResolveAlert(ctx context.Context, alertID uint) (*models.Alert, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.resolve")
	defer span.End()

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND is_resolved = ?", alertID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": now,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, fmt.Errorf("failed to resolve alert: %w", res.Error)
	}

	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return alert, ErrAlertResolved
	}

	s.logger.Infof("Alert %d resolved", alertID)
	return alert, nil
}

// GetAlert 获取告警
func (s *AlertService) GetAlert(ctx context.Context, alertID uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.WithContext(ctx).First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// ListAlerts 获取告警列表
func (s *AlertService) ListAlerts(ctx context.Context, req *AlertListRequest) ([]models.Alert, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Alert{})

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	if req.CustomerID != nil {
		query = query.Where("customer_id = ?", *req.CustomerID)
	}
	if req.AlertType != "" {
		if !models.AlertType(req.AlertType).Valid() {
			return nil, 0, validationError("invalid alert type: %s", req.AlertType)
		}
		query = query.Where("alert_type = ?", req.AlertType)
	}
	if req.Unresolved != nil {
		query = query.Where("is_resolved = ?", !*req.Unresolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	var alerts []models.Alert
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, total, nil
}
