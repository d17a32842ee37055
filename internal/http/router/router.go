package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/interface/http/handler"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// Handlers собирает хэндлеры, которые монтирует роутер.
type Handlers struct {
	Escrow     *handler.EscrowHandler
	Dispute    *handler.DisputeHandler
	Attachment *handler.AttachmentHandler
	Health     *handler.HealthHandler
	WS         *handler.WSHandler
	Metrics    http.Handler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api")
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// Изменяющие операции ограничены по частоте на пользователя.
	writeLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	escrowGroup := protected.Group("/escrow")
	{
		escrowGroup.GET("", h.Escrow.List)
		escrowGroup.POST("", writeLimit, h.Escrow.Create)
		escrowGroup.GET("/statistics", h.Escrow.Statistics)
		escrowGroup.GET("/:id", middleware.UUIDValidator("id"), h.Escrow.Get)
		escrowGroup.POST("/:id/fund", middleware.UUIDValidator("id"), writeLimit, h.Escrow.Fund)
		escrowGroup.POST("/:id/deliver", middleware.UUIDValidator("id"), writeLimit, h.Escrow.Deliver)
		escrowGroup.POST("/:id/accept", middleware.UUIDValidator("id"), writeLimit, h.Escrow.Accept)
		escrowGroup.POST("/:id/dispute", middleware.UUIDValidator("id"), writeLimit, h.Escrow.OpenDispute)
		if h.Attachment != nil {
			escrowGroup.POST("/:id/attachments", middleware.UUIDValidator("id"), writeLimit, h.Attachment.Upload)
			escrowGroup.GET("/:id/attachments/:ref", middleware.UUIDValidator("id"), h.Attachment.Download)
		}
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(service.RoleAdmin))
	{
		admin.POST("/escrow/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Dispute.Resolve)
	}

	return r
}
