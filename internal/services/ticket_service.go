package services

import (
	"context"
	"errors"
	"fmt"

	"cspulse/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TicketService 工单管理服务
type TicketService struct {
	db     *gorm.DB
	logger *logrus.Logger
	sla    *SLAService
}

// NewTicketService 创建工单服务
func NewTicketService(db *gorm.DB, logger *logrus.Logger, sla *SLAService) *TicketService {
	if logger == nil {
		logger = logrus.New()
	}
	if sla == nil {
		sla = NewSLAService(db, logger)
	}

	return &TicketService{
		db:     db,
		logger: logger,
		sla:    sla,
	}
}

// TicketCreateRequest 创建工单请求
type TicketCreateRequest struct {
	Title      string                `json:"title" binding:"required"`
	CustomerID uint                  `json:"customer_id" binding:"required"`
	Priority   models.TicketPriority `json:"priority"`
}

// TicketListRequest 工单列表请求
type TicketListRequest struct {
	Page        int      `form:"page,default=1"`
	PageSize    int      `form:"page_size,default=20"`
	CustomerID  *uint    `form:"customer_id"`
	Status      []string `form:"status"`
	SLABreached *bool    `form:"sla_breached"`
}

// CreateTicket 创建工单
func (s *TicketService) CreateTicket(ctx context.Context, req *TicketCreateRequest) (*models.Ticket, error) {
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, validationError("invalid priority: %s", req.Priority)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", req.CustomerID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if count == 0 {
		return nil, ErrCustomerNotFound
	}

	now := s.sla.now()
	ticket := &models.Ticket{
		Title:      req.Title,
		CustomerID: req.CustomerID,
		Priority:   req.Priority,
		Status:     models.TicketOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		s.logger.Errorf("Failed to create ticket: %v", err)
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.logger.Infof("Created ticket %d for customer %d (priority=%s)", ticket.ID, ticket.CustomerID, ticket.Priority)
	return ticket, nil
}

// GetTicketByID 获取工单
func (s *TicketService) GetTicketByID(ctx context.Context, ticketID uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// UpdateTicketStatus 变更工单状态，首次解决时由 SLA 服务写入解决时长
func (s *TicketService) UpdateTicketStatus(ctx context.Context, ticketID uint, status models.TicketStatus) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, validationError("invalid ticket status: %s", status)
	}

	ticket, err := s.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status {
		return ticket, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status.IsResolved() && ticket.ResolvedAt == nil {
			recorded, err := s.sla.RecordResolution(ctx, tx, ticket, status)
			if err != nil {
				return err
			}
			if recorded {
				return nil
			}
		}
		return tx.Model(&models.Ticket{}).
			Where("id = ?", ticketID).
			Updates(map[string]interface{}{
				"status":     status,
				"updated_at": s.sla.now(),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}

	s.logger.Infof("Ticket %d status %s -> %s", ticketID, ticket.Status, status)
	return s.GetTicketByID(ctx, ticketID)
}

// ListTickets 获取工单列表
func (s *TicketService) ListTickets(ctx context.Context, req *TicketListRequest) ([]models.Ticket, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Ticket{})

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	if req.CustomerID != nil {
		query = query.Where("customer_id = ?", *req.CustomerID)
	}
	if len(req.Status) > 0 {
		query = query.Where("status IN ?", req.Status)
	}
	if req.SLABreached != nil {
		query = query.Where("sla_breached = ?", *req.SLABreached)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	var tickets []models.Ticket
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.PageSize).Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, total, nil
}
