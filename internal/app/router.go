package app

import (
	"coder_edu_lockdown/docs"
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/middleware"
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/monitoring"
	"coder_edu_lockdown/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	// 2. 监考通道
	router.GET("/ws/lockdown", middleware.WSAuthMiddleware(cfg.JWT.Secret), c.lockdown.HandleWS)

	// 3. 学生作答接口
	authGroup := router.Group("/api")
	authGroup.Use(auth, security.KeyedRateLimiter(120, time.Minute, middleware.LearnerKey))
	{
		a.registerStudentRoutes(authGroup, c)

		// 4. 教师查看监考记录
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/classes/:classId/quizzes", c.quizSession.ListClassQuizzes)

	sessions := group.Group("/quiz-sessions")
	{
		sessions.POST("", c.quizSession.Acknowledge)
		sessions.GET("/current", c.quizSession.Current)
		sessions.DELETE("/current", c.quizSession.Cancel)
		sessions.POST("/current/start", c.quizSession.Start)
		sessions.PUT("/current/answers", c.quizSession.SelectAnswer)
		sessions.PUT("/current/index", c.quizSession.Navigate)
		sessions.POST("/current/submit", c.quizSession.Submit)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	proctor := group.Group("/proctor")
	proctor.Use(middleware.RoleMiddleware(util.RoleTeacher, util.RoleAdmin))
	{
		proctor.GET("/learners/:learnerId/events", c.proctorEvent.ListByLearner)
		proctor.GET("/sessions/:sessionId/events", c.proctorEvent.ListBySession)
	}
}
