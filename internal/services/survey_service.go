package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cspulse/internal/metrics"
	"cspulse/internal/models"
	"cspulse/internal/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSurveyTTL           = 7 * 24 * time.Hour
	defaultSurveyFatigueLimit  = 2
	defaultSurveyFatigueWindow = 30 * 24 * time.Hour
	defaultReminderAfter       = 72 * time.Hour
	defaultMaxReminders        = 1
	defaultSurveyBaseURL       = "http://localhost:8080/api/v1/public/surveys"
)

// SurveyOptions 调查生命周期参数
type SurveyOptions struct {
	TTL           time.Duration
	FatigueLimit  int
	FatigueWindow time.Duration
	ReminderAfter time.Duration
	MaxReminders  int
	PublicBaseURL string
}

// DefaultSurveyOptions 默认参数
func DefaultSurveyOptions() SurveyOptions {
	return SurveyOptions{
		TTL:           defaultSurveyTTL,
		FatigueLimit:  defaultSurveyFatigueLimit,
		FatigueWindow: defaultSurveyFatigueWindow,
		ReminderAfter: defaultReminderAfter,
		MaxReminders:  defaultMaxReminders,
		PublicBaseURL: defaultSurveyBaseURL,
	}
}

// SurveyService 调查请求生命周期管理
type SurveyService struct {
	db       *gorm.DB
	logger   *logrus.Logger
	tracer   trace.Tracer
	now      func() time.Time
	opts     SurveyOptions
	alerts   *AlertService
	notifier notify.Notifier
}

// NewSurveyService 创建调查服务。alerts 为 nil 时不评估低分告警，notifier 为 nil 时只写日志。
func NewSurveyService(db *gorm.DB, logger *logrus.Logger, alerts *AlertService, notifier notify.Notifier) *SurveyService {
	if logger == nil {
		logger = logrus.New()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	return &SurveyService{
		db:       db,
		logger:   logger,
		tracer:   otel.Tracer("cspulse.surveys"),
		now:      func() time.Time { return time.Now().UTC() },
		opts:     DefaultSurveyOptions(),
		alerts:   alerts,
		notifier: notifier,
	}
}

// SetClock 替换时间源
func (s *SurveyService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetOptions 覆盖参数，零值字段保持默认
func (s *SurveyService) SetOptions(opts SurveyOptions) {
	def := DefaultSurveyOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.FatigueLimit <= 0 {
		opts.FatigueLimit = def.FatigueLimit
	}
	if opts.FatigueWindow <= 0 {
		opts.FatigueWindow = def.FatigueWindow
	}
	if opts.ReminderAfter <= 0 {
		opts.ReminderAfter = def.ReminderAfter
	}
	if opts.MaxReminders < 0 {
		opts.MaxReminders = 0
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = def.PublicBaseURL
	}
	s.opts = opts
}

// SurveyCreateRequest 创建调查请求
type SurveyCreateRequest struct {
	CustomerID uint                    `json:"customer_id" binding:"required"`
	TargetType models.SurveyTargetType `json:"target_type" binding:"required"`
	Email      string                  `json:"email"`
	SurveyType models.SurveyType       `json:"survey_type"`
	TicketID   *uint                   `json:"ticket_id"`
}

// SurveySubmission 公开页面提交的答复
type SurveySubmission struct {
	Score           int    `json:"score"`
	Comment         string `json:"comment"`
	RespondentEmail string `json:"respondent_email"`
}

// SurveyPreview 公开页面展示信息，只读
type SurveyPreview struct {
	SurveyType   models.SurveyType   `json:"survey_type"`
	ScaleMin     int                 `json:"scale_min"`
	ScaleMax     int                 `json:"scale_max"`
	CustomerName string              `json:"customer_name"`
	TicketID     *uint               `json:"ticket_id,omitempty"`
	TicketTitle  string              `json:"ticket_title,omitempty"`
	Status       models.SurveyStatus `json:"status"`
	ExpiresAt    time.Time           `json:"expires_at"`
	IsExpired    bool                `json:"is_expired"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// SurveyListRequest 调查列表请求
type SurveyListRequest struct {
	Page       int      `form:"page,default=1"`
	PageSize   int      `form:"page_size,default=20"`
	CustomerID *uint    `form:"customer_id"`
	TicketID   *uint    `form:"ticket_id"`
	Status     []string `form:"status"`
}

// ReminderResult 提醒批处理结果
type ReminderResult struct {
	Checked int         `json:"checked"`
	Sent    int         `json:"sent"`
	Errors  []ItemError `json:"errors"`
	Aborted bool        `json:"aborted"`
}

// SurveyURL 公开答复链接
func (s *SurveyService) SurveyURL(token string) string {
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + token
}

// CreateSurveyRequests 创建调查请求，target_type=all 时每个收件人一条，各自独立 token 与过期时间
func (s *SurveyService) CreateSurveyRequests(ctx context.Context, req *SurveyCreateRequest) ([]models.SurveyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.create")
	defer span.End()

	if req.SurveyType == "" {
		req.SurveyType = models.SurveyCSAT
	}
	if !req.SurveyType.Valid() {
		return nil, validationError("invalid survey type: %s", req.SurveyType)
	}
	if !req.TargetType.Valid() {
		return nil, validationError("invalid target type: %s", req.TargetType)
	}
	span.SetAttributes(
		attribute.Int64("survey.customer_id", int64(req.CustomerID)),
		attribute.String("survey.target_type", string(req.TargetType)),
	)

	now := s.now()
	var (
		customer models.Customer
		created  []models.SurveyRequest
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定客户行，串行化同一客户的并发创建
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&customer, req.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCustomerNotFound
			}
			return fmt.Errorf("failed to load customer: %w", err)
		}

		if req.TicketID != nil {
			if err := s.checkTicketAvailable(tx, *req.TicketID, customer.ID); err != nil {
				return err
			}
		}

		targets, err := resolveSurveyTargets(tx, &customer, req.TargetType, req.Email)
		if err != nil {
			return err
		}

		var recent int64
		if err := tx.Model(&models.SurveyRequest{}).
			Where("customer_id = ? AND status IN ? AND created_at >= ?",
				customer.ID,
				[]models.SurveyStatus{models.SurveyPending, models.SurveyCompleted},
				now.Add(-s.opts.FatigueWindow)).
			Count(&recent).Error; err != nil {
			return fmt.Errorf("failed to count recent survey requests: %w", err)
		}
		if recent >= int64(s.opts.FatigueLimit) {
			return fmt.Errorf("%w: customer %d has %d survey requests in the last %s",
				ErrFatigueLimitReached, customer.ID, recent, s.opts.FatigueWindow)
		}

		for _, target := range targets {
			sentAt := now
			row := models.SurveyRequest{
				CustomerID:     customer.ID,
				TargetType:     req.TargetType,
				RecipientEmail: target.Email,
				PortalUserID:   target.PortalUserID,
				SurveyType:     req.SurveyType,
				TicketID:       req.TicketID,
				Token:          uuid.NewString(),
				Status:         models.SurveyPending,
				ExpiresAt:      now.Add(s.opts.TTL),
				SentAt:         &sentAt,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create survey request: %w", err)
			}
			created = append(created, row)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for i := range created {
		s.emit(ctx, notify.Intent{
			Template:   notify.TemplateSurveyRequest,
			Recipient:  created[i].RecipientEmail,
			CustomerID: customer.ID,
			Data:       s.intentData(&created[i], customer.Name),
		})
	}

	metrics.AddSurveyTransitions(string(models.SurveyPending), len(created))
	s.logger.Infof("Created %d survey request(s) for customer %d (target=%s, type=%s)",
		len(created), customer.ID, req.TargetType, req.SurveyType)
	return created, nil
}

// checkTicketAvailable 工单需属于该客户且没有未结束的调查
func (s *SurveyService) checkTicketAvailable(tx *gorm.DB, ticketID, customerID uint) error {
	var ticket models.Ticket
	if err := tx.First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket.CustomerID != customerID {
		return fmt.Errorf("%w: ticket %d does not belong to customer %d", ErrTicketNotFound, ticketID, customerID)
	}

	var open int64
	if err := tx.Model(&models.SurveyRequest{}).
		Where("ticket_id = ? AND status = ?", ticketID, models.SurveyPending).
		Count(&open).Error; err != nil {
		return fmt.Errorf("failed to check open survey requests: %w", err)
	}
	if open > 0 {
		return ErrTicketSurveyExists
	}
	return nil
}

func (s *SurveyService) findByToken(ctx context.Context, token string) (*models.SurveyRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSurveyNotFound
	}
	var req models.SurveyRequest
	if err := s.db.WithContext(ctx).Preload("Customer").Where("token = ?", token).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("failed to load survey request: %w", err)
	}
	return &req, nil
}

// GetPreviewByToken 公开页面预览，不改变状态
func (s *SurveyService) GetPreviewByToken(ctx context.Context, token string) (*SurveyPreview, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.preview")
	defer span.End()

	req, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	lo, hi := req.SurveyType.ScoreRange()
	preview := &SurveyPreview{
		SurveyType:   req.SurveyType,
		ScaleMin:     lo,
		ScaleMax:     hi,
		CustomerName: req.Customer.Name,
		TicketID:     req.TicketID,
		Status:       req.Status,
		ExpiresAt:    req.ExpiresAt,
		IsExpired:    req.Status == models.SurveyExpired || (req.Status == models.SurveyPending && s.now().After(req.ExpiresAt)),
		CompletedAt:  req.CompletedAt,
	}
	if req.TicketID != nil {
		var ticket models.Ticket
		if err := s.db.WithContext(ctx).Select("id", "title").First(&ticket, *req.TicketID).Error; err == nil {
			preview.TicketTitle = ticket.Title
		}
	}
	return preview, nil
}

// CompleteSurvey 通过 token 提交答复。已过期的 pending 请求会先迁移为 expired 再返回错误。
func (s *SurveyService) CompleteSurvey(ctx context.Context, token string, sub SurveySubmission) (*models.SurveyResponse, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.complete")
	defer span.End()

	req, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("survey.request_id", int64(req.ID)))

	if err := terminalStatusError(req.Status); err != nil {
		return nil, err
	}

	now := s.now()
	if now.After(req.ExpiresAt) {
		if err := s.expireOne(ctx, req.ID, now); err != nil {
			return nil, err
		}
		return nil, ErrSurveyExpired
	}

	lo, hi := req.SurveyType.ScoreRange()
	if sub.Score < lo || sub.Score > hi {
		return nil, validationError("%s score must be between %d and %d, got %d", req.SurveyType, lo, hi, sub.Score)
	}

	respondent := strings.TrimSpace(sub.RespondentEmail)
	if respondent == "" {
		respondent = req.RecipientEmail
	}
	response := &models.SurveyResponse{
		SurveyRequestID: req.ID,
		CustomerID:      req.CustomerID,
		TicketID:        req.TicketID,
		SurveyType:      req.SurveyType,
		Score:           sub.Score,
		Comment:         strings.TrimSpace(sub.Comment),
		RespondentEmail: respondent,
		SubmittedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SurveyRequest{}).
			Where("id = ? AND status = ?", req.ID, models.SurveyPending).
			Updates(map[string]interface{}{
				"status":       models.SurveyCompleted,
				"completed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete survey request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var current models.SurveyRequest
			if err := tx.Select("id", "status").First(&current, req.ID).Error; err != nil {
				return fmt.Errorf("failed to reload survey request: %w", err)
			}
			if err := terminalStatusError(current.Status); err != nil {
				return err
			}
			return ErrSurveyNotPending
		}

		if err := tx.Create(response).Error; err != nil {
			return fmt.Errorf("failed to record survey response: %w", err)
		}
		return tx.Model(&models.SurveyRequest{}).
			Where("id = ?", req.ID).
			Update("response_id", response.ID).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.AddSurveyTransitions(string(models.SurveyCompleted), 1)
	s.logger.Infof("Survey request %d completed (%s=%d)", req.ID, req.SurveyType, sub.Score)

	s.afterCompletion(ctx, req, response)
	return response, nil
}

// afterCompletion 低分告警与后续通知，失败只记录日志
func (s *SurveyService) afterCompletion(ctx context.Context, req *models.SurveyRequest, response *models.SurveyResponse) {
	data := s.intentData(req, req.Customer.Name)
	data["score"] = response.Score

	s.emit(ctx, notify.Intent{
		Template:   notify.TemplateSurveyCompleted,
		Recipient:  response.RespondentEmail,
		CustomerID: req.CustomerID,
		Data:       data,
	})

	candidate := EvaluateLowScore(*response, req.Customer.Name)
	if candidate == nil {
		return
	}

	followUp := make(map[string]interface{}, len(data)+3)
	for k, v := range data {
		followUp[k] = v
	}
	if s.alerts != nil {
		res, err := s.alerts.RaiseAlert(ctx, *candidate)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"survey_request_id": req.ID,
				"customer_id":       req.CustomerID,
			}).Errorf("Failed to raise low score alert: %v", err)
		} else if res.Created {
			followUp["alert_id"] = res.Alert.ID
		}
	}

	followUp["severity"] = string(candidate.Severity)
	followUp["comment"] = response.Comment
	s.emit(ctx, notify.Intent{
		Template:   notify.TemplateSurveyLowScoreFollowup,
		Recipient:  req.Customer.ContactEmail,
		CustomerID: req.CustomerID,
		Data:       followUp,
	})
}

func terminalStatusError(status models.SurveyStatus) error {
	switch status {
	case models.SurveyCompleted:
		return ErrSurveyCompleted
	case models.SurveyCancelled:
		return ErrSurveyCancelled
	case models.SurveyExpired:
		return ErrSurveyExpired
	}
	return nil
}

// expireOne 惰性过期，只对 pending 生效
func (s *SurveyService) expireOne(ctx context.Context, id uint, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.SurveyRequest{}).
		Where("id = ? AND status = ?", id, models.SurveyPending).
		Updates(map[string]interface{}{
			"status":     models.SurveyExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to expire survey request: %w", res.Error)
	}
	metrics.AddSurveyTransitions(string(models.SurveyExpired), int(res.RowsAffected))
	return nil
}

// ExpireOldRequests 将已过期的 pending 请求批量置为 expired，可重复执行
func (s *SurveyService) ExpireOldRequests(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.expire")
	defer span.End()

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.SurveyRequest{}).
		Where("status = ? AND expires_at < ?", models.SurveyPending, now).
		Updates(map[string]interface{}{
			"status":     models.SurveyExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return 0, fmt.Errorf("failed to expire survey requests: %w", res.Error)
	}

	metrics.AddSurveyTransitions(string(models.SurveyExpired), int(res.RowsAffected))
	span.SetAttributes(attribute.Int64("surveys.expired", res.RowsAffected))
	if res.RowsAffected > 0 {
		s.logger.Infof("Expired %d survey request(s)", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// CancelSurveyRequest 取消调查，仅 pending 可取消
func (s *SurveyService) CancelSurveyRequest(ctx context.Context, id uint) (*models.SurveyRequest, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.SurveyRequest{}).
		Where("id = ? AND status = ?", id, models.SurveyPending).
		Updates(map[string]interface{}{
			"status":       models.SurveyCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel survey request: %w", res.Error)
	}

	req, err := s.GetSurveyRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if err := terminalStatusError(req.Status); err != nil {
			return nil, err
		}
		return nil, ErrSurveyNotPending
	}

	metrics.AddSurveyTransitions(string(models.SurveyCancelled), 1)
	s.logger.Infof("Survey request %d cancelled", id)
	return req, nil
}

// ResendSurveyRequest 重新发送：签发新 token 并延长过期时间，旧 token 随之失效
func (s *SurveyService) ResendSurveyRequest(ctx context.Context, id uint) (*models.SurveyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.resend")
	defer span.End()

	current, err := s.GetSurveyRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := terminalStatusError(current.Status); err != nil {
		return nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.SurveyRequest{}).
		Where("id = ? AND status = ? AND token = ?", id, models.SurveyPending, current.Token).
		Updates(map[string]interface{}{
			"token":            uuid.NewString(),
			"expires_at":       now.Add(s.opts.TTL),
			"sent_at":          now,
			"reminder_count":   0,
			"last_reminded_at": nil,
			"updated_at":       now,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, fmt.Errorf("failed to resend survey request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrSurveyNotPending
	}

	req, err := s.GetSurveyRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, notify.Intent{
		Template:   notify.TemplateSurveyRequest,
		Recipient:  req.RecipientEmail,
		CustomerID: req.CustomerID,
		Data:       s.intentData(req, req.Customer.Name),
	})

	s.logger.Infof("Resent survey request %d", id)
	return req, nil
}

// SendReminders 对超过 reminder_after 仍未答复的 pending 请求发送提醒
func (s *SurveyService) SendReminders(ctx context.Context) (*ReminderResult, error) {
	ctx, span := s.tracer.Start(ctx, "surveys.reminders")
	defer span.End()

	result := &ReminderResult{Errors: []ItemError{}}
	if s.opts.MaxReminders == 0 {
		return result, nil
	}

	now := s.now()
	cutoff := now.Add(-s.opts.ReminderAfter)
	var due []models.SurveyRequest
	if err := s.db.WithContext(ctx).
		Preload("Customer").
		Where("status = ? AND expires_at > ? AND created_at <= ? AND reminder_count < ?",
			models.SurveyPending, now, cutoff, s.opts.MaxReminders).
		Where("last_reminded_at IS NULL OR last_reminded_at <= ?", cutoff).
		Order("id").
		Find(&due).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load due survey requests: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			result.Aborted = true
			break
		}
		req := &due[i]
		result.Checked++

		res := s.db.WithContext(ctx).Model(&models.SurveyRequest{}).
			Where("id = ? AND status = ? AND reminder_count = ?", req.ID, models.SurveyPending, req.ReminderCount).
			Updates(map[string]interface{}{
				"reminder_count":   gorm.Expr("reminder_count + 1"),
				"last_reminded_at": now,
				"updated_at":       now,
			})
		if res.Error != nil {
			s.logger.WithField("survey_request_id", req.ID).Warnf("Failed to record reminder: %v", res.Error)
			result.Errors = append(result.Errors, ItemError{Component: "survey_reminder", EntityID: req.ID, Message: res.Error.Error()})
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		data := s.intentData(req, req.Customer.Name)
		data["reminder_number"] = req.ReminderCount + 1
		s.emit(ctx, notify.Intent{
			Template:   notify.TemplateSurveyReminder,
			Recipient:  req.RecipientEmail,
			CustomerID: req.CustomerID,
			Data:       data,
		})
		result.Sent++
	}

	span.SetAttributes(attribute.Int("surveys.reminders_sent", result.Sent))
	s.logger.Infof("Survey reminders: checked %d, sent %d", result.Checked, result.Sent)
	return result, nil
}

// GetSurveyRequest 获取调查请求
func (s *SurveyService) GetSurveyRequest(ctx context.Context, id uint) (*models.SurveyRequest, error) {
	var req models.SurveyRequest
	if err := s.db.WithContext(ctx).Preload("Customer").First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("failed to load survey request: %w", err)
	}
	return &req, nil
}

// ListSurveyRequests 获取调查请求列表
func (s *SurveyService) ListSurveyRequests(ctx context.Context, req *SurveyListRequest) ([]models.SurveyRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.SurveyRequest{})

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	if req.CustomerID != nil {
		query = query.Where("customer_id = ?", *req.CustomerID)
	}
	if req.TicketID != nil {
		query = query.Where("ticket_id = ?", *req.TicketID)
	}
	if len(req.Status) > 0 {
		query = query.Where("status IN ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count survey requests: %w", err)
	}

	var requests []models.SurveyRequest
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list survey requests: %w", err)
	}

	return requests, total, nil
}

func (s *SurveyService) intentData(req *models.SurveyRequest, customerName string) map[string]interface{} {
	data := map[string]interface{}{
		"survey_request_id": req.ID,
		"survey_type":       string(req.SurveyType),
		"survey_url":        s.SurveyURL(req.Token),
		"expires_at":        req.ExpiresAt.Format(time.RFC3339),
		"customer_name":     customerName,
	}
	if req.TicketID != nil {
		data["ticket_id"] = *req.TicketID
	}
	return data
}

func (s *SurveyService) emit(ctx context.Context, intent notify.Intent) {
	if err := s.notifier.Notify(ctx, intent); err != nil {
		s.logger.WithFields(logrus.Fields{
			"template":    intent.Template,
			"customer_id": intent.CustomerID,
		}).Warnf("Failed to emit notification intent: %v", err)
	}
}
