package app

import (
	"github.com/sidhuiwnl/lordminds-sub000/internal/config"
	"github.com/sidhuiwnl/lordminds-sub000/internal/middleware"
	"github.com/sidhuiwnl/lordminds-sub000/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 会话生命周期
		authGroup.POST("/assignments/:assignmentId/session", c.session.Open)
		authGroup.GET("/assignments/:assignmentId/questions", c.session.GetQuestions)
		authGroup.GET("/sessions/:sessionId", c.session.Get)

		// 监考信号
		authGroup.POST("/sessions/:sessionId/integrity/events", c.integrity.ReportEvent)
		authGroup.GET("/sessions/:sessionId/integrity/events", c.integrity.ListEvents)
		authGroup.POST("/sessions/:sessionId/integrity/heartbeat", c.integrity.Heartbeat)

		// 语音作答
		authGroup.POST("/sessions/:sessionId/recording/start", c.grading.StartRecording)
		authGroup.POST("/sessions/:sessionId/recording/cancel", c.grading.CancelRecording)
		authGroup.POST("/sessions/:sessionId/recording/stop", c.grading.StopRecording)
		authGroup.POST("/sessions/:sessionId/speak", c.grading.Speak)

		// 推进与交卷
		authGroup.POST("/sessions/:sessionId/navigate", c.navigation.Navigate)
		authGroup.POST("/sessions/:sessionId/submit", c.navigation.Submit)
	}
}
