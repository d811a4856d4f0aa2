package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/audit"
	"github.com/Salon-Boss/malia-pro-access/internal/catalog"
	"github.com/Salon-Boss/malia-pro-access/internal/engine"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/Salon-Boss/malia-pro-access/internal/infra/auth"
	"github.com/Salon-Boss/malia-pro-access/internal/policy"
	"github.com/Salon-Boss/malia-pro-access/internal/repository/postgres"
	"github.com/Salon-Boss/malia-pro-access/internal/server"
	"github.com/Salon-Boss/malia-pro-access/internal/server/handler"
	"github.com/Salon-Boss/malia-pro-access/internal/server/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	policyRepo, err := postgres.NewPolicyRepo(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer policyRepo.Close()

	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := policyRepo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// Отдельный пул для аудита: пишет пачками, не конкурирует с горячим путем
	auditRepo := postgres.NewAuditRepo(cfg.Database.URL)

	// RSA ключи для консоли управления
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("invalid auth public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("invalid auth private key", zap.Error(err))
	}

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Экспортируем метрики для Prometheus на отдельном порту
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics exporter started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics exporter stopped", zap.Error(err))
		}
	}()

	// 4. Control Plane: политики арендаторов + кэш фактов каталога
	store := policy.NewStore(policyRepo, rdb, logger)
	if err := store.RefreshAll(appCtx); err != nil {
		logger.Fatal("failed to load tenant policies", zap.Error(err))
	}
	go store.StartListener(appCtx)

	// Апстрим каталога. Без base_url работаем на мок-коннекторе (локальная разработка)
	var provider catalog.Provider
	if cfg.Catalog.BaseURL == "" {
		logger.Warn("catalog.base_url is empty, using in-memory mock provider")
		provider = catalog.NewMockProvider()
	} else {
		provider = catalog.NewHTTPProvider(cfg.Catalog.BaseURL, cfg.Catalog.FetchTimeout, logger)
	}
	// Оборачиваем в Reliability (Rate Limit, Circuit Breaker, Retries)
	safeProvider := catalog.NewReliabilityWrapper(provider, cfg.Catalog)

	cache := catalog.NewCache(safeProvider, store, cfg.Catalog.TTL, logger)
	invalidator := catalog.NewListener(cache, rdb, logger)
	go invalidator.Start(appCtx)

	// 5. Аудит (буферизированная запись пачками)
	trail := audit.NewTrail(
		auditRepo,
		cfg.Engine.AuditBufferSize,
		cfg.Engine.AuditBatchSize,
		cfg.Engine.AuditFlushInterval,
		metrics.AuditBufferFill,
		logger,
	)
	trail.Start()

	// 6. Core (Сборка ядра решений)
	resolver := policy.NewResolver(store, cache)
	core := engine.NewCore(store, resolver, trail, metrics, logger)

	// Входной лимитер по ключу вызывающего
	limiter := engine.NewSlidingWindow(cfg.Engine.RateWindow, cfg.Engine.RateMaxRequests, logger)
	go limiter.StartReaper(appCtx, cfg.Engine.RateReapEvery)

	// 7. Сервисы и HTTP слой (Dependency Injection)
	authService := service.NewAuthService(policyRepo, privKey, cfg.Auth.TokenTTL)
	policyService := service.NewPolicyService(policyRepo, rdb)
	analyticsService := service.NewAnalyticsService(auditRepo)
	eventService := service.NewEventService(rdb, logger)

	srvHandler := server.New(
		cfg,
		logger,
		auth.NewBaseValidator(pubKey),
		limiter,
		metrics,
		handler.NewAuthHandler(authService),
		handler.NewDecisionHandler(core, resolver, store),
		handler.NewPolicyHandler(policyService),
		handler.NewOverrideHandler(policyService),
		handler.NewAnalyticsHandler(analyticsService),
		handler.NewEventsHandler(eventService),
		handler.NewCollectionsHandler(safeProvider, store),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srvHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("gatekeeper started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("gatekeeper stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые горутины и дожимаем буфер аудита в базу
	cancel()
	trail.Stop()
	logger.Info("gatekeeper exited properly")
}
