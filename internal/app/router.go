package app

import (
	"mytutor_backend/docs"
	"mytutor_backend/internal/config"
	"mytutor_backend/internal/middleware"
	"mytutor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerCourseRoutes(authGroup, c)
		a.registerTrainingRoutes(authGroup, c)
	}
}

func (a *App) registerCourseRoutes(rg *gin.RouterGroup, c *controllers) {
	courses := rg.Group("/courses")
	{
		courses.POST("/process", c.course.StartProcessing)
		courses.POST("/process/:sessionId/continue", c.course.ContinueAfterLogin)
		courses.GET("/process/:sessionId/status", c.course.GetStatus)
		courses.DELETE("/process/:sessionId", c.course.StopProcessing)
	}

	kb := rg.Group("/knowledge-bases")
	{
		kb.GET("", c.knowledgeBase.List)
		kb.GET("/:id/learning-content", c.knowledgeBase.GetLearningContent)
		kb.GET("/:id/training/history", c.training.HistoryByKnowledgeBase)
		kb.DELETE("/:id", c.knowledgeBase.Delete)
	}
}

func (a *App) registerTrainingRoutes(rg *gin.RouterGroup, c *controllers) {
	training := rg.Group("/training")
	{
		training.POST("/start", c.training.Start)
		training.POST("/answer", c.training.SubmitAnswer)
		training.GET("/history/user", c.training.HistoryByUser)
		training.GET("/:sessionId", c.training.Get)
		training.POST("/:sessionId/end", c.training.End)
	}
}
