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

	"cognichat/internal/app"
	"cognichat/internal/config"
	"cognichat/internal/crawler"
	"cognichat/internal/logger"
	"cognichat/internal/telemetry"
	"cognichat/middleware"
	"cognichat/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	reapTag      = "session-reaper"
	reapInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.IndexWarmup {
		start := time.Now()
		if _, err := a.Pipeline.EnsureIndex(ctx); err != nil {
			logger.Error("index warmup failed", "error", err)
			os.Exit(1)
		}
		logger.Info("index warmed up", "duration", time.Since(start).String(), "chunks", a.Pipeline.Status().Chunks)
	}

	var scheduler *crawler.Scheduler
	if cfg.IndexRefreshCron != "" {
		scheduler, err = crawler.ScheduleIndexRefresh(cfg.IndexRefreshCron, a.Pipeline.Rebuild)
		if err != nil {
			logger.Error("invalid INDEX_REFRESH_CRON", "cron", cfg.IndexRefreshCron, "error", err)
			os.Exit(1)
		}
	} else {
		scheduler = crawler.NewScheduler()
		scheduler.Start()
	}
	defer scheduler.Stop()

	if err := scheduler.ScheduleInterval(reapTag, reapInterval, func(ctx context.Context) error {
		_, err := a.Sessions.ReapIdle(ctx)
		return err
	}); err != nil {
		logger.Warn("session reaper not scheduled", "error", err)
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.AccessLog())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	router.Use(cors.New(corsConfig))

	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(a.Metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))
	if a.Redis != nil {
		router.Use(middleware.RateLimitMiddleware(a.Redis, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))
	}

	routes.SetupHealthRoutes(router, a.Pipeline, a.Redis)
	routes.SetupAskRoutes(router, a.Pipeline)
	routes.SetupChatRoutes(router, a.Sessions)
	routes.SetupComposeRoutes(router, a.Composer)
	routes.SetupAdminRoutes(router, cfg.AdminSecret, a.Pipeline, a.Sessions)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}
