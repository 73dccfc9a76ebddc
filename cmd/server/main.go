package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"jutjubic/internal/config"
	"jutjubic/internal/handler"
	"jutjubic/internal/metrics"
	"jutjubic/internal/middleware"
	"jutjubic/internal/repository"
	"jutjubic/internal/service"
	"jutjubic/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithFormat(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = appLogger.Sync() }()

	dbPool, err := newPool(context.Background(), cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// The limiters fail open or closed on their own, so an unreachable Redis is not fatal here.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Warn("Redis is not reachable", "addr", cfg.Redis.Addr, "error", err)
	} else {
		appLogger.Info("Redis connection established")
	}

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	loginGuard := middleware.NewLoginGuard(services.LoginLimiter, services.Audit, appLogger)

	handlers := handler.NewHandlers(services, dbPool, rdb, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, loginGuard, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Hijacked websocket connections are not tracked by Shutdown.
	services.PlaybackHub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	loginGuard *middleware.LoginGuard,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(metrics.GinMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Auth.Register)
			auth.POST("/login", loginGuard.Limit(), handlers.Auth.Login)
			auth.POST("/logout", handlers.Auth.Logout)
			auth.GET("/me", authMiddleware.RequireAuth(), handlers.Auth.Me)
		}

		videos := api.Group("/videos/:id/comments")
		{
			videos.GET("", handlers.Comment.ListByVideo)
			videos.GET("/count", handlers.Comment.CountByVideo)
		}

		comments := api.Group("/comments")
		comments.Use(authMiddleware.RequireAuth())
		{
			comments.POST("", handlers.Comment.Create)
			comments.GET("/my", handlers.Comment.ListMine)
			comments.GET("/rate-limit", handlers.Comment.RateLimitStatus)
			comments.DELETE("/:id", handlers.Comment.Delete)
		}

		watchParty := api.Group("/watchparty")
		watchParty.Use(authMiddleware.RequireAuth())
		{
			watchParty.POST("/create", handlers.WatchParty.Create)
			watchParty.POST("/join/:roomId", handlers.WatchParty.Join)
			watchParty.POST("/leave/:roomId", handlers.WatchParty.Leave)
			watchParty.GET("/:roomId", handlers.WatchParty.Get)
		}
	}

	// Browsers cannot set headers on the upgrade request, so RequireAuth also reads ?token=.
	router.GET("/ws/watchparty/:roomId", authMiddleware.RequireAuth(), handlers.WebSocket.HandleWatchParty)

	return router
}
