package handlers

import (
	"net/http"

	"cspulse/internal/models"
	"cspulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SurveyHandler 调查请求处理器，包含员工接口与公开 token 接口
type SurveyHandler struct {
	surveyService *services.SurveyService
	logger        *logrus.Logger
}

// NewSurveyHandler 创建调查处理器
func NewSurveyHandler(surveyService *services.SurveyService, logger *logrus.Logger) *SurveyHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SurveyHandler{
		surveyService: surveyService,
		logger:        logger,
	}
}

// surveyRequestView 员工接口返回的调查请求，附带公开链接
type surveyRequestView struct {
	models.SurveyRequest
	SurveyURL string `json:"survey_url,omitempty"`
}

func (h *SurveyHandler) view(req models.SurveyRequest) surveyRequestView {
	v := surveyRequestView{SurveyRequest: req}
	if req.Status == models.SurveyPending {
		v.SurveyURL = h.surveyService.SurveyURL(req.Token)
	}
	return v
}

// CreateSurveyRequests 为客户创建调查请求
// @Summary 创建调查请求
// @Description 按 target_type 解析收件人并创建调查请求，受疲劳度限制
// @Tags 调查
// @Accept json
// @Produce json
// @Param request body services.SurveyCreateRequest true "调查请求"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/surveys [post]
func (h *SurveyHandler) CreateSurveyRequests(c *gin.Context) {
	var req services.SurveyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	created, err := h.surveyService.CreateSurveyRequests(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to create survey requests", err)
		return
	}

	views := make([]surveyRequestView, 0, len(created))
	for _, r := range created {
		views = append(views, h.view(r))
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Survey requests created",
		Data:    views,
	})
}

// ListSurveyRequests 调查请求列表
// @Router /api/v1/surveys [get]
func (h *SurveyHandler) ListSurveyRequests(c *gin.Context) {
	var req services.SurveyListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return
	}

	items, total, err := h.surveyService.ListSurveyRequests(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Failed to list survey requests", err)
		return
	}

	views := make([]surveyRequestView, 0, len(items))
	for _, r := range items {
		views = append(views, h.view(r))
	}
	c.JSON(http.StatusOK, newPaginatedResponse(views, total, req.Page, req.PageSize))
}

// GetSurveyRequest 调查请求详情
// @Router /api/v1/surveys/{id} [get]
func (h *SurveyHandler) GetSurveyRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	req, err := h.surveyService.GetSurveyRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get survey request", err)
		return
	}
	c.JSON(http.StatusOK, h.view(*req))
}

// CancelSurveyRequest 取消 pending 状态的调查请求
// @Router /api/v1/surveys/{id}/cancel [post]
func (h *SurveyHandler) CancelSurveyRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	req, err := h.surveyService.CancelSurveyRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to cancel survey request", err)
		return
	}
	c.JSON(http.StatusOK, h.view(*req))
}

// ResendSurveyRequest 重新签发 token 并延长有效期
// @Router /api/v1/surveys/{id}/resend [post]
func (h *SurveyHandler) ResendSurveyRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	req, err := h.surveyService.ResendSurveyRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to resend survey request", err)
		return
	}
	c.JSON(http.StatusOK, h.view(*req))
}

// GetPublicSurvey 公开页面查看调查，无需登录
// @Summary 查看调查
// @Tags 公开调查
// @Produce json
// @Param token path string true "调查 token"
// @Success 200 {object} services.SurveyPreview
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/public/surveys/{token} [get]
func (h *SurveyHandler) GetPublicSurvey(c *gin.Context) {
	preview, err := h.surveyService.GetPreviewByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, "Survey unavailable", err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// RespondPublicSurvey 公开页面提交答复
// @Summary 提交调查答复
// @Tags 公开调查
// @Accept json
// @Produce json
// @Param token path string true "调查 token"
// @Param submission body services.SurveySubmission true "答复"
// @Success 201 {object} models.SurveyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/v1/public/surveys/{token}/respond [post]
func (h *SurveyHandler) RespondPublicSurvey(c *gin.Context) {
	var sub services.SurveySubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.surveyService.CompleteSurvey(c.Request.Context(), c.Param("token"), sub)
	if err != nil {
		respondError(c, h.logger, "Failed to submit survey", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegisterSurveyRoutes 注册员工调查路由
func RegisterSurveyRoutes(r *gin.RouterGroup, handler *SurveyHandler) {
	surveys := r.Group("/surveys")
	{
		surveys.POST("", handler.CreateSurveyRequests)
		surveys.GET("", handler.ListSurveyRequests)
		surveys.GET("/:id", handler.GetSurveyRequest)
		surveys.POST("/:id/cancel", handler.CancelSurveyRequest)
		surveys.POST("/:id/resend", handler.ResendSurveyRequest)
	}
}

// RegisterPublicSurveyRoutes 注册公开调查路由，不经过认证
func RegisterPublicSurveyRoutes(r *gin.RouterGroup, handler *SurveyHandler) {
	public := r.Group("/public/surveys")
	{
		public.GET("/:token", handler.GetPublicSurvey)
		public.POST("/:token/respond", handler.RespondPublicSurvey)
	}
}
