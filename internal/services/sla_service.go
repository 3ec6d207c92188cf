package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"cspulse/internal/metrics"
	"cspulse/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	slaSweepBatchSize      = 200
	defaultAtRiskThreshold = 80.0
)

var activeTicketStatuses = []models.TicketStatus{models.TicketOpen, models.TicketInProgress}

var errSweepAborted = errors.New("sweep aborted")

// SLAService 工单 SLA 跟踪服务
type SLAService struct {
	db     *gorm.DB
	logger *logrus.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewSLAService 创建SLA服务
func NewSLAService(db *gorm.DB, logger *logrus.Logger) *SLAService {
	if logger == nil {
		logger = logrus.New()
	}

	return &SLAService{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("cspulse.sla"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间源（测试与回放使用）
func (s *SLAService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BreachedTicket 本次新标记违约的工单
type BreachedTicket struct {
	TicketID       uint                  `json:"ticket_id"`
	CustomerID     uint                  `json:"customer_id"`
	Priority       models.TicketPriority `json:"priority"`
	ElapsedHours   float64               `json:"elapsed_hours"`
	ThresholdHours float64               `json:"threshold_hours"`
}

// SLASweepResult SLA 巡检结果
type SLASweepResult struct {
	Checked       int              `json:"checked"`
	NewlyBreached []BreachedTicket `json:"newly_breached"`
	Errors        []ItemError      `json:"errors"`
	Aborted       bool             `json:"aborted"`
}

// AtRiskTicket 接近违约的工单
type AtRiskTicket struct {
	Ticket         models.Ticket `json:"ticket"`
	ThresholdHours float64       `json:"threshold_hours"`
	ElapsedHours   float64       `json:"elapsed_hours"`
	PercentageUsed float64       `json:"percentage_used"`
	HoursRemaining float64       `json:"hours_remaining"`
}

// TicketSLAStatus 单个工单的 SLA 快照
type TicketSLAStatus struct {
	TicketID       uint       `json:"ticket_id"`
	ThresholdHours float64    `json:"threshold_hours"`
	Deadline       time.Time  `json:"deadline"`
	ElapsedHours   float64    `json:"elapsed_hours"`
	PercentageUsed float64    `json:"percentage_used"`
	HoursRemaining float64    `json:"hours_remaining"`
	Breached       bool       `json:"breached"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// CheckSLABreaches 巡检未解决且未违约的工单，超过时限则标记违约。
// 已标记的工单不会再次出现在结果中。
func (s *SLAService) CheckSLABreaches(ctx context.Context) (*SLASweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "sla.check_breaches")
	defer span.End()

	now := s.now()
	result := &SLASweepResult{NewlyBreached: []BreachedTicket{}, Errors: []ItemError{}}

	var batch []models.Ticket
	err := s.db.WithContext(ctx).
		Where("status IN ? AND sla_breached = ?", activeTicketStatuses, false).
		FindInBatches(&batch, slaSweepBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				if ctx.Err() != nil {
					return errSweepAborted
				}
				result.Checked++
				breached, err := s.flagIfBreached(ctx, &batch[i], now)
				if err != nil {
					s.logger.WithFields(logrus.Fields{
						"ticket_id": batch[i].ID,
						"priority":  batch[i].Priority,
					}).Warnf("SLA check failed: %v", err)
					result.Errors = append(result.Errors, ItemError{Component: "sla", EntityID: batch[i].ID, Message: err.Error()})
					continue
				}
				if breached != nil {
					result.NewlyBreached = append(result.NewlyBreached, *breached)
				}
			}
			return nil
		}).Error
	if errors.Is(err, errSweepAborted) || (err != nil && ctx.Err() != nil) {
		result.Aborted = true
		err = nil
	}
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("failed to load active tickets: %w", err)
	}

	span.SetAttributes(
		attribute.Int("sla.sweep.checked", result.Checked),
		attribute.Int("sla.sweep.breached", len(result.NewlyBreached)),
		attribute.Int("sla.sweep.errors", len(result.Errors)),
	)
	s.logger.Infof("SLA sweep completed: checked %d tickets, flagged %d, errors %d",
		result.Checked, len(result.NewlyBreached), len(result.Errors))

	return result, nil
}

// flagIfBreached 超时则以 CAS 方式置位 sla_breached，返回 nil 表示未新增违约
func (s *SLAService) flagIfBreached(ctx context.Context, ticket *models.Ticket, now time.Time) (*BreachedTicket, error) {
	if ticket.CreatedAt.IsZero() {
		return nil, fmt.Errorf("ticket has no created_at")
	}
	if ticket.CreatedAt.After(now) {
		return nil, fmt.Errorf("ticket created_at %s is in the future", ticket.CreatedAt.Format(time.RFC3339))
	}

	threshold := SLAThresholdHours(ticket.Priority)
	elapsed := hoursBetween(ticket.CreatedAt, now)
	if elapsed <= threshold {
		return nil, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND sla_breached = ?", ticket.ID, false).
		Updates(map[string]interface{}{
			"sla_breached": true,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to flag breach: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 并发巡检已经置位
		return nil, nil
	}

	metrics.IncSLABreach(string(ticket.Priority), "sweep")
	s.logger.Warnf("SLA breached: ticket=%d priority=%s elapsed=%.1fh threshold=%.0fh",
		ticket.ID, ticket.Priority, elapsed, threshold)

	return &BreachedTicket{
		TicketID:       ticket.ID,
		CustomerID:     ticket.CustomerID,
		Priority:       ticket.Priority,
		ElapsedHours:   elapsed,
		ThresholdHours: threshold,
	}, nil
}

// RecordResolution 首次进入 resolved/closed 时写入 resolved_at 与解决时长。
// 仅当 resolved_at 为空时生效，返回 false 表示已记录过。
func (s *SLAService) RecordResolution(ctx context.Context, tx *gorm.DB, ticket *models.Ticket, status models.TicketStatus) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "sla.record_resolution")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("sla.ticket.id", int64(ticket.ID)),
		attribute.String("sla.ticket.priority", string(ticket.Priority)),
	)

	if !status.IsResolved() {
		return false, validationError("status %q is not a resolution status", status)
	}
	if tx == nil {
		tx = s.db
	}

	now := s.now()
	hours := hoursBetween(ticket.CreatedAt, now)
	if hours < 0 {
		hours = 0
	}
	breached := hours > SLAThresholdHours(ticket.Priority)

	updates := map[string]interface{}{
		"status":                status,
		"resolved_at":           now,
		"resolution_time_hours": hours,
		"updated_at":            now,
	}
	if breached {
		// 只置 true，不会把已有的违约标记清掉
		updates["sla_breached"] = true
	}

	res := tx.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND resolved_at IS NULL", ticket.ID).
		Updates(updates)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to record resolution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if breached && !ticket.SLABreached {
		metrics.IncSLABreach(string(ticket.Priority), "resolution")
	}
	s.logger.Infof("Ticket %d resolved after %.2fh (threshold %.0fh, breached=%v)",
		ticket.ID, hours, SLAThresholdHours(ticket.Priority), breached || ticket.SLABreached)

	return true, nil
}

// AtRiskTickets 返回 SLA 消耗比例超过 percentage 的未违约工单，按紧急程度降序
func (s *SLAService) AtRiskTickets(ctx context.Context, percentage float64) ([]AtRiskTicket, error) {
	ctx, span := s.tracer.Start(ctx, "sla.at_risk")
	defer span.End()

	if percentage <= 0 {
		percentage = defaultAtRiskThreshold
	}

	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where("status IN ? AND sla_breached = ?", activeTicketStatuses, false).
		Find(&tickets).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load active tickets: %w", err)
	}

	now := s.now()
	atRisk := make([]AtRiskTicket, 0)
	for _, ticket := range tickets {
		if ticket.CreatedAt.IsZero() || ticket.CreatedAt.After(now) {
			continue
		}
		threshold := SLAThresholdHours(ticket.Priority)
		elapsed := hoursBetween(ticket.CreatedAt, now)
		used := elapsed / threshold * 100
		if used <= percentage {
			continue
		}
		atRisk = append(atRisk, AtRiskTicket{
			Ticket:         ticket,
			ThresholdHours: threshold,
			ElapsedHours:   elapsed,
			PercentageUsed: used,
			HoursRemaining: math.Max(0, threshold-elapsed),
		})
	}

	sort.SliceStable(atRisk, func(i, j int) bool {
		return atRisk[i].PercentageUsed > atRisk[j].PercentageUsed
	})

	span.SetAttributes(attribute.Int("sla.at_risk.count", len(atRisk)))
	return atRisk, nil
}

// GetTicketSLAStatus 获取单个工单的 SLA 状态
func (s *SLAService) GetTicketSLAStatus(ctx context.Context, ticketID uint) (*TicketSLAStatus, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	threshold := SLAThresholdHours(ticket.Priority)
	end := s.now()
	if ticket.ResolvedAt != nil {
		end = *ticket.ResolvedAt
	}
	elapsed := math.Max(0, hoursBetween(ticket.CreatedAt, end))
	if ticket.ResolutionTimeHours != nil {
		elapsed = *ticket.ResolutionTimeHours
	}

	return &TicketSLAStatus{
		TicketID:       ticket.ID,
		ThresholdHours: threshold,
		Deadline:       SLADeadline(ticket.Priority, ticket.CreatedAt),
		ElapsedHours:   elapsed,
		PercentageUsed: elapsed / threshold * 100,
		HoursRemaining: math.Max(0, threshold-elapsed),
		Breached:       ticket.SLABreached,
		ResolvedAt:     ticket.ResolvedAt,
	}, nil
}
