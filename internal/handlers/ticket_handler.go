package handlers

import (
	"net/http"
	"strconv"

	"cspulse/internal/models"
	"cspulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TicketHandler 工单与 SLA 处理器
type TicketHandler struct {
	ticketService *services.TicketService
	slaService    *services.SLAService
	logger        *logrus.Logger
}

// NewTicketHandler 创建工单处理器
func NewTicketHandler(ticketService *services.TicketService, slaService *services.SLAService, logger *logrus.Logger) *TicketHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TicketHandler{
		ticketService: ticketService,
		slaService:    slaService,
		logger:        logger,
	}
}

// TicketStatusRequest 更新工单状态请求
type TicketStatusRequest struct {
	Status models.TicketStatus `json:"status" binding:"required"`
}

// CreateTicket 创建工单
// @Router /api/v1/tickets [post]
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req services.TicketCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	ticket, err := h.ticketService.CreateTicket(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to create ticket", err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GetTicket 工单详情
// @Router /api/v1/tickets/{id} [get]
func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetTicketByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get ticket", err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ListTickets 工单列表
// @Router /api/v1/tickets [get]
func (h *TicketHandler) ListTickets(c *gin.Context) {
	var req services.TicketListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}

	tickets, total, err := h.ticketService.ListTickets(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to list tickets", err)
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(tickets, total, req.Page, req.PageSize))
}

// UpdateTicketStatus 更新工单状态，首次解决时记录解决时长
// @Router /api/v1/tickets/{id}/status [put]
func (h *TicketHandler) UpdateTicketStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req TicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	ticket, err := h.ticketService.UpdateTicketStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.logger, "Failed to update ticket status", err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// GetTicketSLAStatus 单个工单的 SLA 快照
// @Router /api/v1/tickets/{id}/sla [get]
func (h *TicketHandler) GetTicketSLAStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status, err := h.slaService.GetTicketSLAStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get ticket SLA status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListAtRiskTickets 接近违约的工单，threshold 为已消耗百分比，默认 80
// @Param threshold query number false "百分比阈值" default(80)
// @Router /api/v1/tickets/at-risk [get]
func (h *TicketHandler) ListAtRiskTickets(c *gin.Context) {
	threshold := 0.0
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			badRequest(c, "Invalid threshold", "threshold must be a positive number")
			return
		}
		threshold = v
	}

	tickets, err := h.slaService.AtRiskTickets(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, h.logger, "Failed to list at-risk tickets", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "ok",
		Data:    tickets,
	})
}

// RegisterTicketRoutes 注册工单路由
func RegisterTicketRoutes(r *gin.RouterGroup, handler *TicketHandler) {
	tickets := r.Group("/tickets")
	{
		tickets.POST("", handler.CreateTicket)
		tickets.GET("", handler.ListTickets)
		tickets.GET("/at-risk", handler.ListAtRiskTickets)
		tickets.GET("/:id", handler.GetTicket)
		tickets.PUT("/:id/status", handler.UpdateTicketStatus)
		tickets.GET("/:id/sla", handler.GetTicketSLAStatus)
	}
}
