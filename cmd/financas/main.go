package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"financas/internal/amqp"
	"financas/internal/auth"
	"financas/internal/backend"
	"financas/internal/cache"
	"financas/internal/config"
	"financas/internal/filters"
	apphttp "financas/internal/http"
	"financas/internal/kv"
	"financas/internal/log"
	"financas/internal/memories"
	"financas/internal/services"
)

func main() {
	// Load .env for local development; absent in production.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	kvStore, err := kv.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to initialize key-value store", log.FieldError, err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	var publisher services.NotificationPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, notifications disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, notifications will not be published")
	}

	memo := cache.NewMemoCache[services.Summary](cfg.CacheTTL)
	categories := services.NewCategoryService(result.Store, memo, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Users:        services.NewUserService(result.Store, categories, logger),
		Transactions: services.NewTransactionService(result.Store, memo, publisher, logger),
		Categories:   categories,
		Goals:        services.NewGoalService(result.Store, publisher, logger),
		Memories:     memories.NewEngine(kvStore, logger),
		Filters:      filters.NewStore(kvStore, logger),
		Tokens:       auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
