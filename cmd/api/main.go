package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/mortgage-service/internal/cache"
	"github.com/Dan9191/mortgage-service/internal/config"
	"github.com/Dan9191/mortgage-service/internal/handler"
	"github.com/Dan9191/mortgage-service/internal/integrations/cbr"
	"github.com/Dan9191/mortgage-service/internal/middleware"
	"github.com/Dan9191/mortgage-service/internal/notify"
	"github.com/Dan9191/mortgage-service/internal/repository"
	"github.com/Dan9191/mortgage-service/internal/scheduler"
	"github.com/Dan9191/mortgage-service/internal/service"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewRepository(db)
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.Ping(startupCtx); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repo.Migrate(startupCtx); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	cancel()

	// Key rate cache
	var keyRateCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr)
		defer redisCache.Close()
		keyRateCache = redisCache
		logger.Infof("Using Redis cache at %s", cfg.RedisAddr)
	} else {
		keyRateCache = cache.NewMemoryCache()
	}
	cbrClient := cbr.NewClient(cfg.CBRURL, cfg.KeyRateMargin, cfg.KeyRateTTL, keyRateCache, logger)

	var notifier notify.Notifier = notify.Discard{}
	if cfg.SMTPEnabled() {
		notifier = notify.NewSender(cfg, logger)
	} else {
		logger.Info("SMTP not configured, evaluation emails disabled")
	}

	// Initialize layers
	svc := service.NewService(repo, notifier, logger, cfg)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	h := handler.NewHandler(svc, cbrClient, repo, logger)
	r := handler.NewRouter(h, cfg, limiter)

	sched, err := scheduler.New(cfg.ReportSchedule, svc, limiter, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
	sched.Stop(shutdownCtx)
	logger.Info("Server stopped")
}
