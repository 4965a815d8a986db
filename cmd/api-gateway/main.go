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

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/handler"
	"github.com/altavia-air/altavia-api/internal/ratelimit"
	"github.com/altavia-air/altavia-api/internal/registry"
	"github.com/altavia-air/altavia-api/internal/repository"
	"github.com/altavia-air/altavia-api/internal/server"
	"github.com/altavia-air/altavia-api/internal/service"
	"github.com/altavia-air/altavia-api/internal/token"
	"github.com/altavia-air/altavia-api/pkg/cache"
	"github.com/altavia-air/altavia-api/pkg/config"
	"github.com/altavia-air/altavia-api/pkg/database"
	"github.com/altavia-air/altavia-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	codec, err := token.NewCodec(cfg.JWT)
	if err != nil {
		logr.Fatal("failed to init token codec", zap.Error(err))
	}

	store, err := newRegistryStore(cfg, redisClient)
	if err != nil {
		logr.Fatal("failed to init refresh registry", zap.Error(err))
	}
	defer store.Close()

	limiter := ratelimit.New(cfg.RateLimit)
	defer limiter.Close()

	auditor := audit.NewLogger(cfg.Audit.BufferSize, audit.NewZapSink(logr))
	defer auditor.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authSvc := service.NewAuthService(userRepo, codec, store, validate, logr, auditor, metrics)
	bookingSvc := service.NewBookingService(bookingRepo, cacheRepo, validate, logr, auditor)

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Logger:   logr,
		Codec:    codec,
		Limiter:  limiter,
		Auditor:  auditor,
		Metrics:  metrics,
		Auth:     handler.NewAuthHandler(authSvc),
		Bookings: handler.NewBookingHandler(bookingSvc),
		DB:       db,
		Redis:    redisClient,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
}

func newRegistryStore(cfg *config.Config, redisClient *redis.Client) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("registry backend is redis but REDIS_ENABLED is false")
		}
		return registry.NewRedisStore(redisClient), nil
	default:
		return registry.NewMemoryStore(cfg.Registry.MaxEntries, cfg.Registry.CleanupInterval), nil
	}
}
