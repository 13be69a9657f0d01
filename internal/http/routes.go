package http

import (
	"time"

	"ton_miner/internal/http/handlers"
	"ton_miner/internal/http/middleware"
	"ton_miner/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig holds the limiter settings for the API groups
type RouteConfig struct {
	APIRateLimit     int
	APIRateWindow    time.Duration
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	ActionRateLimit  int
	ActionRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, cfg RouteConfig) {
	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", h.WS(hub))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	v1.POST("/auth", middleware.RedisRateLimit(cfg.AuthRateLimit, cfg.AuthRateWindow), h.Auth)

	// public
	v1.GET("/settings", h.PublicSettings)
	v1.GET("/tasks", h.Tasks)
	v1.GET("/engagement/reward", h.RewardCallback)

	user := v1.Group("")
	user.Use(middleware.JWT())
	{
		user.GET("/state", h.State)
		user.GET("/withdrawals", h.ListWithdrawals)
		user.GET("/referral", h.Referral)
		user.POST("/engagement/confirm", h.ConfirmEngagement)

		actions := user.Group("")
		actions.Use(middleware.ActionRateLimit(cfg.ActionRateLimit, cfg.ActionRateWindow))
		actions.POST("/mining/start", h.StartMining)
		actions.POST("/gift/claim", h.ClaimDailyGift)
		actions.POST("/faucet/claim", h.ClaimFaucet)
		actions.POST("/tasks/:id/complete", h.CompleteTask)
		actions.POST("/withdrawals", h.RequestWithdrawal)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminPasscode(h.Admin))
	{
		admin.POST("/verify", h.AdminVerify)
		admin.GET("/settings", h.AdminSettings)
		admin.PUT("/settings", h.AdminUpdateSettings)
		admin.GET("/withdrawals", h.AdminWithdrawals)
		admin.POST("/withdrawals/:id/status", h.AdminSetWithdrawalStatus)
		admin.POST("/accounts/:tg_id/grant", h.AdminGrant)
		admin.POST("/accounts/:tg_id/reset", h.AdminReset)
		admin.GET("/audit", h.AdminAudit)
	}
}
