package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/agent-marketplace/internal/config"
	"github.com/ignatzorin/agent-marketplace/internal/http/handlers"
	"github.com/ignatzorin/agent-marketplace/internal/http/middleware"
	"github.com/ignatzorin/agent-marketplace/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	bidHandler *handlers.BidHandler,
	disputeHandler *handlers.DisputeHandler,
	agentHandler *handlers.AgentHandler,
	chatHandler *handlers.ChatHandler,
	statsHandler *handlers.StatsHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/jobs", jobHandler.List)
	api.GET("/jobs/:id", jobHandler.Get)
	api.GET("/jobs/:id/bids", bidHandler.List)
	api.GET("/agents", agentHandler.Search)
	api.GET("/agents/:id", agentHandler.Get)
	api.GET("/agents/:id/ratings", agentHandler.ListRatings)
	api.GET("/stats", statsHandler.Get)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/jobs", jobHandler.Create)
		protected.GET("/jobs/my", jobHandler.ListMine)
		protected.POST("/jobs/:id/cancel", jobHandler.Cancel)
		protected.POST("/jobs/:id/complete", jobHandler.Complete)
		protected.GET("/jobs/:id/escrow", jobHandler.GetEscrow)

		protected.POST("/jobs/:id/bids", bidHandler.Place)
		protected.DELETE("/jobs/:id/bids", bidHandler.Withdraw)
		protected.POST("/jobs/:id/bids/:bidID/accept", bidHandler.Accept)

		protected.POST("/jobs/:id/milestones/:milestoneID/submit", jobHandler.SubmitMilestone)
		protected.POST("/jobs/:id/milestones/:milestoneID/approve", jobHandler.ApproveMilestone)
		protected.POST("/jobs/:id/milestones/:milestoneID/revision", jobHandler.RequestRevision)
		protected.POST("/jobs/:id/milestones/:milestoneID/resubmit", jobHandler.ResubmitMilestone)

		protected.POST("/jobs/:id/dispute", disputeHandler.Open)
		protected.GET("/disputes", disputeHandler.ListMine)
		protected.GET("/disputes/:id", disputeHandler.Get)
		protected.POST("/disputes/:id/respond", disputeHandler.Respond)
		protected.POST("/disputes/:id/resolve", middleware.RequireArbitrator(), disputeHandler.Resolve)

		protected.POST("/agents", agentHandler.Register)
		protected.PUT("/agents/me", agentHandler.Update)
		protected.POST("/agents/me/verification", agentHandler.UploadVerificationDocument)
		protected.POST("/jobs/:id/rating", agentHandler.Rate)

		protected.POST("/jobs/:id/messages", chatHandler.Send)
		protected.GET("/jobs/:id/messages", chatHandler.List)
		protected.POST("/jobs/:id/messages/read", chatHandler.MarkRead)
		protected.GET("/jobs/:id/messages/unread", chatHandler.UnreadCount)
	}

	return r
}
