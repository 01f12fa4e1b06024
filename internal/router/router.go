package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Curriculum *handler.CurriculumHandler
	Assessment *handler.AssessmentHandler
	Health     *handler.HealthHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Uploaded files are immutable: their names are fresh UUIDs.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", middleware.NoStore(), handlers.Health.Health)

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore(), middleware.RequireJWT(authService))

	// ─── Curricula ─────────────────────────────────────────────────────
	curricula := api.Group("/curricula")
	{
		read := middleware.RequirePermission(model.PermissionCurriculaRead)
		write := middleware.RequirePermission(model.PermissionCurriculaWrite)

		curricula.POST("/upload", write, handlers.Curriculum.Upload)
		curricula.GET("", read, handlers.Curriculum.List)
		curricula.GET("/search", read, handlers.Curriculum.Search)
		curricula.GET("/:id", read, handlers.Curriculum.Get)
		curricula.GET("/:id/preview", read, handlers.Curriculum.Preview)
		curricula.PUT("/:id", write, handlers.Curriculum.Update)
		curricula.DELETE("/:id", write, handlers.Curriculum.Delete)
	}

	// ─── Assessments ───────────────────────────────────────────────────
	generateLimiter := middleware.NewRateLimiter("generate", cfg.Pipeline.GenerateRatePerMinute)
	assessments := api.Group("/assessments")
	{
		generate := middleware.RequirePermission(model.PermissionAssessmentsGenerate)
		read := middleware.RequireAnyPermission(model.PermissionAssessmentsRead, model.PermissionAssessmentsWrite)
		write := middleware.RequirePermission(model.PermissionAssessmentsWrite)

		assessments.POST("/generate", generate, generateLimiter.Middleware(), handlers.Assessment.Generate)
		assessments.POST("/context-preview", generate, handlers.Assessment.ContextPreview)
		assessments.GET("", read, handlers.Assessment.List)
		assessments.GET("/:id", read, handlers.Assessment.Get)
		assessments.PUT("/:id", write, handlers.Assessment.Update)
		assessments.DELETE("/:id", write, handlers.Assessment.Delete)
	}

	// ─── WebSocket (token in query) ────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/curricula/:id/progress",
			middleware.RequirePermission(model.PermissionCurriculaRead),
			handlers.WS.IngestProgress,
		)
	}

	return router
}
