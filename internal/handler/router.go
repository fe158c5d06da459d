package handler

import (
	"github.com/GoPolymarket/paperbot/internal/middleware"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	Auth    *AuthHandler
	Markets *MarketHandler
	Stream  *StreamHandler
	Health  *HealthHandler

	Tokens       middleware.TokenResolver
	AuthLimiter  middleware.Limiter
	AdminKey     string
	EnforceHTTPS bool

	// TrustedProxies may set X-Forwarded-For; nil trusts nobody.
	TrustedProxies []string
	MetricsPath    string // empty disables /metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("Invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())

	// Global Middleware
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", cfg.Health.Health)
	r.GET("/health/upstream", cfg.Health.Upstream)
	if cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	auth := r.Group("/auth")
	auth.Use(middleware.RequireHTTPS(cfg.EnforceHTTPS))
	auth.Use(middleware.RateLimit(cfg.AuthLimiter))
	{
		auth.POST("/nonce", cfg.Auth.Nonce)
		auth.POST("/verify", cfg.Auth.Verify)
	}

	r.GET("/markets", cfg.Markets.List)
	r.POST("/markets", cfg.Markets.Create)
	r.DELETE("/markets/:id", middleware.AdminMiddleware(cfg.AdminKey), cfg.Markets.Delete)

	bots := r.Group("/markets/:id")
	bots.Use(middleware.RequireHTTPS(cfg.EnforceHTTPS))
	bots.Use(middleware.BearerAuth(cfg.Tokens))
	{
		bots.POST("/start", cfg.Markets.Start)
		bots.POST("/stop", cfg.Markets.Stop)
	}

	r.GET("/pnl/:market_id", cfg.Markets.PnL)
	r.GET("/ws/pnl", cfg.Stream.PnL)

	return r
}
