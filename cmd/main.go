package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/medbox-genie/reminder-scheduling/internal/config"
	"github.com/medbox-genie/reminder-scheduling/internal/handler"
	"github.com/medbox-genie/reminder-scheduling/internal/health"
	"github.com/medbox-genie/reminder-scheduling/internal/infra/dispatch"
	"github.com/medbox-genie/reminder-scheduling/internal/infra/push"
	"github.com/medbox-genie/reminder-scheduling/internal/infra/repository"
	"github.com/medbox-genie/reminder-scheduling/internal/observability/logging"
	"github.com/medbox-genie/reminder-scheduling/internal/observability/metrics"
	"github.com/medbox-genie/reminder-scheduling/internal/service/expiry"
	"github.com/medbox-genie/reminder-scheduling/internal/service/schedule"
	"github.com/medbox-genie/reminder-scheduling/internal/service/stock"
)

// Version is set via ldflags at build time
var Version = "dev"

const serviceName = "reminder-scheduling"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	slog.SetDefault(logging.New(cfg.LogLevel, serviceName, Version))

	if err := config.ValidateForRun(cfg); err != nil {
		slog.Error("configuration validation error", slog.String("error", err.Error()))
		return 1
	}

	metricsShutdown, err := metrics.SetupProvider(ctx, serviceName, Version)
	if err != nil {
		slog.Error("failed to initialize metrics provider", slog.String("error", err.Error()))
		return 1
	}
	if metricsShutdown != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Warn("metrics provider shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	schedulingMetrics, err := metrics.NewSchedulingMetrics()
	if err != nil {
		slog.Error("failed to initialize scheduling metrics", slog.String("error", err.Error()))
		return 1
	}

	redisOptions := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.TLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect redis",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("error", err.Error()),
		)
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}()

	slog.Info("redis connected", slog.String("addr", cfg.Redis.Addr))

	pendingRepo := repository.NewPendingNotificationRepository(redisClient)

	medStore, storeCleanup, err := initMedicationStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize medication store", slog.String("error", err.Error()))
		return 1
	}
	if storeCleanup != nil {
		defer func() {
			if err := storeCleanup(); err != nil {
				slog.Warn("medication store cleanup error", slog.String("error", err.Error()))
			}
		}()
	}

	scheduler := schedule.NewService(
		medStore,
		pendingRepo,
		stock.NewCalculator(cfg.Schedule.LowStockThreshold, time.Duration(cfg.Schedule.LowStockGraceMinutes)*time.Minute),
		expiry.NewCalculator(cfg.Schedule.ExpiryOffsetMinutes, cfg.Schedule.SurveyCadenceDays),
		schedulingMetrics,
	)

	go func() {
		if err := scheduler.WatchChanges(ctx); err != nil && ctx.Err() == nil {
			slog.Error("change stream watcher stopped", slog.String("error", err.Error()))
		}
	}()

	pushClient := push.NewClient(cfg.Push.GatewayURL)
	dispatcher := dispatch.NewDispatcher(pendingRepo, pushClient, schedulingMetrics)
	if err := dispatcher.Start(ctx, cfg.Push.DispatchCronSpec); err != nil {
		slog.Error("failed to start dispatcher", slog.String("error", err.Error()))
		return 1
	}
	defer dispatcher.Stop()

	resyncCron := cron.New()
	if _, err := resyncCron.AddFunc(cfg.Schedule.ResyncCronSpec, func() {
		if err := scheduler.ResyncAll(ctx); err != nil {
			slog.Error("periodic resync failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		slog.Error("failed to register resync schedule", slog.String("error", err.Error()))
		return 1
	}
	resyncCron.Start()
	defer resyncCron.Stop()

	medicationHandler := handler.NewMedicationHandler(medStore, scheduler)
	notificationHandler := handler.NewNotificationHandler(pendingRepo)

	r := gin.New()
	r.Use(gin.Recovery())

	healthChecker := health.NewChecker(redisClient, Version)
	r.GET("/health/live", healthChecker.LiveHandler())
	r.GET("/health/ready", healthChecker.ReadyHandler())
	r.GET("/health", healthChecker.ReadyHandler())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/medications", medicationHandler.HandleCreate)
		v1.PUT("/medications/:name", medicationHandler.HandleUpdate)
		v1.DELETE("/medications/:name", medicationHandler.HandleDelete)
		v1.POST("/schedule/resync", medicationHandler.HandleResync)
		v1.GET("/notifications/pending", notificationHandler.HandleListPending)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Port),
			slog.Int("low_stock_threshold", cfg.Schedule.LowStockThreshold),
			slog.Int("expiry_offset_minutes", cfg.Schedule.ExpiryOffsetMinutes),
			slog.String("dispatch_cron_spec", cfg.Push.DispatchCronSpec),
		)
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown server", slog.String("error", err.Error()))
			return 1
		}

		slog.Info("server exited properly")
		return 0
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			return 1
		}
		return 0
	}
}
