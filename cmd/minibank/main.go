package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seojun-park/minibank-go/internal/config"
	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/seojun-park/minibank-go/internal/handler"
	"github.com/seojun-park/minibank-go/internal/infra/boltstore"
	"github.com/seojun-park/minibank-go/internal/infra/cache"
	"github.com/seojun-park/minibank-go/internal/infra/memstore"
	"github.com/seojun-park/minibank-go/internal/infra/observability"
	"github.com/seojun-park/minibank-go/internal/port"
	"github.com/seojun-park/minibank-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "minibank-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	accountsCache := cache.New[[]domain.Account](cfg.CacheTTL)

	// --- Store ---
	var bankStore port.BankStore
	var authStore port.AuthStore

	switch cfg.StoreBackend {
	case "bolt":
		store, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			logger.Fatal("failed to open bolt store", zap.Error(err))
		}
		defer store.Close()
		if cfg.SeedDemoData {
			if err := store.Seed(context.Background()); err != nil {
				logger.Fatal("failed to seed bolt store", zap.Error(err))
			}
		}
		logger.Info("using BoltDB store", zap.String("path", cfg.BoltPath))
		bankStore = store
		authStore = store
	default:
		var store *memstore.Store
		if cfg.SeedDemoData {
			store = memstore.NewSeeded()
		} else {
			store = memstore.New()
		}
		logger.Info("using in-memory store", zap.Bool("seeded", cfg.SeedDemoData))
		bankStore = store
		authStore = store
	}

	// --- Services ---
	bankSvc := service.NewBankingService(bankStore, accountsCache, metrics, logger)
	transferSvc := service.NewTransferService(bankStore, accountsCache, metrics, logger)
	authSvc := service.NewAuthService(authStore, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.TwoFactorCode, logger)

	// --- Router ---
	router := handler.NewRouter(bankSvc, transferSvc, authSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
