package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financas/internal/amqp"
	"financas/internal/backend"
	"financas/internal/config"
	"financas/internal/log"
	"financas/internal/services"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentRecurrence)
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

	var publisher services.NotificationPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, notifications disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	goals := services.NewGoalService(result.Store, publisher, logger)
	processor := services.NewRecurringProcessor(result.Store, goals, publisher, logger)

	logger.Info("Recurrence worker configured",
		"interval", cfg.RecurrenceInterval, "backend", cfg.DataBackend)

	runOnce := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			logger.Error("Recurrence processing failed", log.FieldError, err)
			return
		}
		logger.Info("Recurrence processing complete", "processed", count)
	}

	// Catch up on anything that came due while the worker was down.
	runOnce(time.Now())

	ticker := time.NewTicker(cfg.RecurrenceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurrence worker stopped")
			return
		case now := <-ticker.C:
			runOnce(now)
		}
	}
}
