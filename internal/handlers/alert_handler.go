package handlers

import (
	"net/http"

	"cspulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AlertHandler 告警处理器
type AlertHandler struct {
	alertService *services.AlertService
	logger       *logrus.Logger
}

// NewAlertHandler 创建告警处理器
func NewAlertHandler(alertService *services.AlertService, logger *logrus.Logger) *AlertHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// RaiseAlert 手动提交告警，经过与批处理相同的去重闸门
// @Summary 提交告警
// @Tags 告警
// @Accept json
// @Produce json
// @Param alert body services.AlertCandidate true "告警"
// @Success 201 {object} services.RaiseResult "新建"
// @Success 200 {object} services.RaiseResult "当日已存在同类告警"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/alerts [post]
func (h *AlertHandler) RaiseAlert(c *gin.Context) {
	var candidate services.AlertCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	res, err := h.alertService.RaiseAlert(c.Request.Context(), candidate)
	if err != nil {
		respondError(c, h.logger, "Failed to raise alert", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// ListAlerts 告警列表
// @Router /api/v1/alerts [get]
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var req services.AlertListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}

	alerts, total, err := h.alertService.ListAlerts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to list alerts", err)
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(alerts, total, req.Page, req.PageSize))
}

// GetAlert 告警详情
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get alert", err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ResolveAlert 解决告警
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.ResolveAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to resolve alert", err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// RegisterAlertRoutes 注册告警路由
func RegisterAlertRoutes(r *gin.RouterGroup, handler *AlertHandler) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("", handler.RaiseAlert)
		alerts.GET("", handler.ListAlerts)
		alerts.GET("/:id", handler.GetAlert)
		alerts.POST("/:id/resolve", handler.ResolveAlert)
	}
}
