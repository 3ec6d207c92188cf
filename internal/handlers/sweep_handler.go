package handlers

import (
	"net/http"

	"cspulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SweepHandler 手动触发批处理
type SweepHandler struct {
	sweepService *services.SweepService
	logger       *logrus.Logger
}

// NewSweepHandler 创建批处理处理器
func NewSweepHandler(sweepService *services.SweepService, logger *logrus.Logger) *SweepHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SweepHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// RunSweep 同步执行指定批处理并返回汇总，单项失败记录在 errors 中
// @Summary 执行批处理
// @Tags 批处理
// @Produce json
// @Param sweep path string true "alerts | sla | surveys | reminders | all"
// @Success 200 {object} services.SweepResult
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/sweeps/{sweep} [post]
func (h *SweepHandler) RunSweep(c *gin.Context) {
	res, err := h.sweepService.Run(c.Request.Context(), c.Param("sweep"))
	if err != nil {
		respondError(c, h.logger, "Failed to run sweep", err)
		return
	}
	if res.Aborted {
		h.logger.Warnf("Sweep %s aborted before completion", res.Sweep)
	}
	c.JSON(http.StatusOK, res)
}

// RegisterSweepRoutes 注册批处理路由
func RegisterSweepRoutes(r *gin.RouterGroup, handler *SweepHandler) {
	r.POST("/sweeps/:sweep", handler.RunSweep)
}
