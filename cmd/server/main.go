package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumamail/webhook-service/internal/api"
	"github.com/lumamail/webhook-service/internal/cache"
	"github.com/lumamail/webhook-service/internal/config"
	"github.com/lumamail/webhook-service/internal/dispatcher"
	"github.com/lumamail/webhook-service/internal/service"
	"github.com/lumamail/webhook-service/internal/store"
	"github.com/lumamail/webhook-service/internal/tracker"
	ws "github.com/lumamail/webhook-service/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisClient, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	hub := ws.NewHub(logger)
	go hub.Run()

	queue := dispatcher.NewQueue(redisClient, pgStore, logger)
	track := tracker.New(pgStore, cfg.DisableThreshold, logger)
	limiter := dispatcher.NewRateLimiter(redisClient, logger)
	deliverer := dispatcher.NewDeliverer(queue, track, pgStore, limiter, hub, cfg.DeliveryRateLimit, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool := dispatcher.NewPool(cfg.NumWorkers, deliverer, logger)
	pool.Start(workerCtx)

	poller := dispatcher.NewPoller(redisClient, pool, logger)
	go poller.Start(workerCtx)

	svc := service.New(pgStore, queue, logger)
	webhookCache := cache.New(redisClient, logger)

	router := api.NewRouter(svc, pgStore, queue, webhookCache, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopWorkers()
	pool.Stop()

	logger.Info("server stopped")
}
