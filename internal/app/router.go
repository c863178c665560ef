package app

import (
	"elevate_backend/docs"
	"elevate_backend/internal/config"
	"elevate_backend/internal/middleware"
	"elevate_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由（报名入口和排行榜无需令牌）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/contests", c.contest.ListContests)
		public.GET("/contests/:id", c.contest.GetContest)
		public.POST("/contests/:id/start", c.contest.StartSession)
		public.GET("/contests/:id/leaderboard", c.contest.Leaderboard)
		public.GET("/contests/:id/statistics", c.contest.Statistics)
	}

	// 2. 会话路由，凭答题令牌访问
	attempts := router.Group("/api/attempts")
	attempts.Use(middleware.AttemptAuth(cfg))
	{
		attempts.GET("/:id", c.session.GetSession)
		attempts.POST("/:id/answers", c.session.SaveAnswer)
		attempts.POST("/:id/submit", c.session.Submit)
		attempts.POST("/:id/heartbeat", c.session.Heartbeat)
		attempts.POST("/:id/run", c.session.RunSample)
		attempts.POST("/:id/snapshots", c.session.UploadSnapshot)
	}

	// 3. 后台路由
	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg))
	{
		admin.POST("/contests", c.admin.CreateContest)
		admin.POST("/contests/:id/publish", c.admin.PublishContest)
		admin.GET("/contests/:id/attempts", c.admin.ListAttempts)
		admin.GET("/contests/:id/pending-subjective", c.admin.PendingSubjective)
		admin.POST("/contests/:id/questions", c.question.ImportQuestions)
		admin.GET("/contests/:id/questions", c.question.ListQuestions)

		admin.GET("/attempts/:id", c.admin.GetAttempt)
		admin.POST("/attempts/:id/extend", c.admin.ExtendTime)
		admin.POST("/attempts/:id/invalidate", c.admin.Invalidate)
		admin.POST("/attempts/:id/regrade", c.admin.Regrade)

		admin.POST("/responses/:id/grade", c.admin.ManualGrade)
		admin.GET("/grading/failed-jobs", c.admin.FailedJobs)
	}
}
