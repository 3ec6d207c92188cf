package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterOptions 路由装配参数
type RouterOptions struct {
	ServiceName    string // otelgin 使用，为空时不挂载追踪中间件
	MetricsEnabled bool
	MetricsPath    string
	AccessLog      bool
}

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Health  *HealthHandler
	Tickets *TicketHandler
	Alerts  *AlertHandler
	Surveys *SurveyHandler
	Sweeps  *SweepHandler
}

// NewRouter 装配 gin 引擎
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
		r.GET("/ready", h.Health.Ready)
	}

	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	if h.Surveys != nil {
		RegisterPublicSurveyRoutes(v1, h.Surveys)
		RegisterSurveyRoutes(v1, h.Surveys)
	}
	if h.Tickets != nil {
		RegisterTicketRoutes(v1, h.Tickets)
	}
	if h.Alerts != nil {
		RegisterAlertRoutes(v1, h.Alerts)
	}
	if h.Sweeps != nil {
		RegisterSweepRoutes(v1, h.Sweeps)
	}
	return r
}

// corsMiddleware CORS 中间件，公开调查页面可能跨域提交
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
