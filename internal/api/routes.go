package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"foliogen/internal/api/middleware"
	"foliogen/internal/auth"
	"foliogen/internal/config"
	"foliogen/internal/ingest"
	"foliogen/internal/portfolio"
	"foliogen/internal/ratelimit"
	"foliogen/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	limiter ratelimit.Limiter,
	portfolios *portfolio.Service,
	orchestrator *ingest.Orchestrator,
	storageClient *storage.Client,
	logger *slog.Logger,
) {
	router.Use(middleware.SlogLoggerMiddleware(logger))

	authHandler := NewAuthHandler(db, authService, portfolios, redisClient, limiter, logger, "")
	portfolioHandler := NewPortfolioHandler(portfolios, logger)
	publicHandler := NewPublicHandler(portfolios, logger)
	resumeHandler := NewResumeHandler(
		db, storageClient, asynqClient, orchestrator, portfolios, logger,
		cfg.Clamd.Addr, cfg.Limits.MaxUploadBytes, cfg.Limits.MaxUploadsKept,
	)
	wsHandler := NewWsHandler(redisClient, authService, logger, nil)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)
		v1.GET("/p/:slug", publicHandler.GetBySlug)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		portfolioGroup := v1.Group("/portfolio")
		portfolioGroup.Use(authMiddleware)
		{
			portfolioGroup.GET("", portfolioHandler.Get)
			portfolioGroup.PUT("", portfolioHandler.Update)
			portfolioGroup.PUT("/slug", portfolioHandler.UpdateSlug)
			portfolioGroup.PUT("/publish", portfolioHandler.SetPublished)
		}

		resumeGroup := v1.Group("/resume")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.POST("/uploads", resumeHandler.Upload)
			resumeGroup.GET("/uploads", resumeHandler.ListUploads)
			resumeGroup.DELETE("/uploads/:id", resumeHandler.DeleteUpload)
			resumeGroup.GET("/uploads/:id/download-link", resumeHandler.DownloadLink)
			resumeGroup.POST("/uploads/:id/parse", resumeHandler.Parse)
			resumeGroup.POST("/uploads/:id/parse-async", resumeHandler.ParseAsync)
			resumeGroup.GET("/parsed", resumeHandler.GetParsed)
		}
	}
}
