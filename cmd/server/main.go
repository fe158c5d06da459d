package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/paperbot/internal/config"
	"github.com/GoPolymarket/paperbot/internal/handler"
	"github.com/GoPolymarket/paperbot/internal/manager"
	"github.com/GoPolymarket/paperbot/internal/market"
	"github.com/GoPolymarket/paperbot/internal/middleware"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/GoPolymarket/paperbot/internal/repository"
	"github.com/GoPolymarket/paperbot/internal/service"
	polymarket "github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/cenkalti/backoff/v5"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

func main() {
	// 0. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. Initialize Logger
	logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	baseCtx, stopBots := context.WithCancel(context.Background())
	defer stopBots()

	// 2. Initialize Persistence (Postgres > Memory)
	var store repository.Store
	if cfg.Database.DSN != "" {
		db, err := connectDB(baseCtx, cfg)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if err := repository.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		logger.Info("✅ Connected to PostgreSQL")
		store = repository.NewPostgresStore(db)
	} else {
		logger.Warn("⚠️ No database configured, state is kept in memory")
		store = repository.NewMemoryStore()
	}

	// Auth rate limiter (Redis > Memory)
	var authLimiter middleware.Limiter = service.NewSlidingWindowLimiter(cfg.Auth.RateLimitWindow(), cfg.Auth.RateLimitMaxRequests)
	if cfg.Redis.Addr != "" {
		rdb, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			defer rdb.Close()
			authLimiter = repository.NewRedisWindowLimiter(rdb, cfg.Redis.KeyPrefix,
				cfg.Auth.RateLimitWindow(), cfg.Auth.RateLimitMaxRequests, authLimiter)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}

	// 3. Market Data
	httpClient := &http.Client{Timeout: cfg.Polymarket.Timeout()}
	sdkCfg := polymarket.DefaultConfig()
	sdkCfg.HTTPClient = httpClient
	sdkCfg.Timeout = cfg.Polymarket.Timeout()
	sdkCfg.BaseURLs.CLOB = cfg.Polymarket.APIBase
	sdkCfg.BaseURLs.Gamma = cfg.Polymarket.PublicAPIBase
	client := polymarket.NewClient(
		polymarket.WithConfig(sdkCfg),
		polymarket.WithUseServerTime(true),
	)

	upstream := market.NewUpstream(httpClient, cfg.Polymarket.APIKey, cfg.Polymarket.MaxRequestsPerSecond)
	var sources []market.Source
	var bookStream *market.BookStream
	if cfg.Polymarket.StreamEnabled {
		bookStream = market.NewBookStream(cfg.Polymarket.WSURL)
		bookStream.Start()
		sources = append(sources, market.NewStreamSource(bookStream, 3*cfg.Bot.LoopInterval()))
	}
	sources = append(sources,
		market.NewBookSource(market.SDKBookFetcher(client)),
		market.NewEndpointSource(upstream, cfg.Polymarket.APIBase, cfg.Polymarket.PublicAPIBase),
		market.NewListingSource(upstream, cfg.Polymarket.PublicAPIBase),
	)
	feed := market.NewFeed(market.NewFallback(), sources...)

	// 4. Initialize Core Services
	bots := manager.NewBotManager(baseCtx, store, feed, manager.NewLoopConfig(cfg.Bot))
	tokens := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL())
	authSvc := service.NewAuthService(store, manager.NewNonceManager(cfg.Auth.NonceTTL()), tokens)
	marketSvc := service.NewMarketService(store, bots)

	// 5. Setup Router
	routerCfg := handler.RouterConfig{
		Auth:         handler.NewAuthHandler(authSvc),
		Markets:      handler.NewMarketHandler(marketSvc),
		Stream:       handler.NewStreamHandler(marketSvc, cfg.Stream.Interval(), cfg.Server.AllowedOrigins()),
		Health:       handler.NewHealthHandler(handler.GammaChecker{Client: client.Gamma}, cfg.Polymarket.Timeout()),
		Tokens:       tokens,
		AuthLimiter:  authLimiter,
		AdminKey:     cfg.Auth.AdminKey,
		EnforceHTTPS: cfg.Server.EnforceHTTPS,

		TrustedProxies: cfg.Server.TrustedProxies(),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	r := handler.NewRouter(routerCfg)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderAdminKey, middleware.HeaderRequestID},
		AllowCredentials: true,
	}).Handler(r)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: corsHandler,
	}

	go func() {
		logger.Info("🚀 Paperbot started", "port", cfg.Server.Port, "stream", cfg.Polymarket.StreamEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bots.StopAll(ctx)
	if bookStream != nil {
		bookStream.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// connectDB retries until Postgres accepts connections.
func connectDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	return backoff.Retry(ctx, func() (*gorm.DB, error) {
		return repository.NewDB(cfg)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(2*time.Second)),
		backoff.WithMaxTries(uint(max(1, cfg.Database.ConnectRetries))),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Database not ready, retrying", "error", err, "retry_in", next)
		}),
	)
}
