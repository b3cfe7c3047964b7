package app

import (
	"grading_backend/docs"
	"grading_backend/internal/middleware"
	"grading_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 判题提交接口：网关完成认证后以 X-User-Id 透传用户
	api := router.Group("/api")
	api.Use(middleware.GatewayAuth())
	{
		api.POST("/submissions", c.submission.CreateSubmission)
		api.GET("/submissions", c.submission.ListSubmissions)
		api.GET("/submissions/recent", c.submission.RecentSubmissions)
		api.GET("/submissions/:id", c.submission.GetSubmission)
	}
}
