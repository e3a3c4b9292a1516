package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/config"
	"github.com/SergeiKhy/ad-tracker/internal/handler"
	"github.com/SergeiKhy/ad-tracker/internal/metrics"
	"github.com/SergeiKhy/ad-tracker/internal/middleware"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/SergeiKhy/ad-tracker/internal/service/fraud"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	siteRepo := repository.NewSiteRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	adRepo := repository.NewAdRepository(db)
	eventRepo := repository.NewEventRepository(db)
	metricRepo := repository.NewMetricRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	// Процессор счётчиков слотов (Worker Pool)
	counterProcessor := service.NewCounterProcessor(slotRepo, logger)
	counterProcessor.Start()
	defer counterProcessor.Stop()

	// Инициализация сервисов
	scorer := fraud.NewScorer(cfg.Fraud, cacheRepo, logger)
	ingestService := service.NewIngestService(eventRepo, slotRepo, adRepo, counterProcessor, scorer, logger)
	rollupService := service.NewRollupService(eventRepo, metricRepo, siteRepo, adRepo, logger)
	inventoryService := service.NewInventoryService(siteRepo, slotRepo, inventoryRepo, logger)
	dashboardService := service.NewDashboardService(metricRepo, eventRepo, siteRepo, adRepo)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	siteAuth := middleware.NewSiteAuth(middleware.DefaultSiteAuthConfig, siteRepo, cacheRepo, logger)

	// Prometheus метрики
	m := metrics.New()

	// Настройка роутера
	router := handler.NewRouter(
		ingestService,
		dashboardService,
		rollupService,
		inventoryService,
		siteAuth,
		rateLimiter,
		m,
		logger,
	)

	// Фоновые батчи: пересчёт агрегатов и сверка инвентаря по расписанию
	batchCtx, batchCancel := context.WithCancel(context.Background())
	defer batchCancel()
	go runRollupLoop(batchCtx, rollupService, m, cfg.Rollup.Interval, logger)
	go runInventoryLoop(batchCtx, inventoryService, m, cfg.Inventory.Interval, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	batchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// runRollupLoop периодически пересчитывает агрегаты за последнее окно
func runRollupLoop(ctx context.Context, rollup service.RollupService, m *metrics.Metrics, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			to := time.Now().UTC()
			from := to.Add(-24 * time.Hour)

			started := time.Now()
			report, err := rollup.Recompute(ctx, from, to, repository.EventFilter{})
			if err != nil {
				logger.Error("Фоновый пересчёт агрегатов завершился ошибкой", zap.Error(err))
				continue
			}
			m.RollupDuration.Observe(time.Since(started).Seconds())
			logger.Debug("Фоновый пересчёт агрегатов",
				zap.Int("buckets_written", report.BucketsWritten),
			)
		}
	}
}

// runInventoryLoop периодически сверяет инвентарь всех площадок
func runInventoryLoop(ctx context.Context, inventory service.InventoryService, m *metrics.Metrics, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()
			report, err := inventory.Reconcile(ctx, nil)
			if err != nil {
				logger.Error("Фоновая сверка инвентаря завершилась ошибкой", zap.Error(err))
				continue
			}
			m.ReconcileDuration.Observe(time.Since(started).Seconds())
			logger.Debug("Фоновая сверка инвентаря",
				zap.Int("sites_processed", report.SitesProcessed),
				zap.Int("sites_failed", report.SitesFailed),
			)
		}
	}
}
