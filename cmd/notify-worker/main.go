package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financas/internal/amqp"
	"financas/internal/config"
	"financas/internal/kv"
	"financas/internal/log"
	"financas/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentNotify)
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kvStore, err := kv.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to initialize key-value store", log.FieldError, err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifier := worker.NewNotifyWorker(kvStore, logger)

	logger.Info("Notify worker started",
		"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = amqpClient.ConsumeNotificationsWithReconnect(ctx, func(msg *amqp.NotificationMessage) error {
		return notifier.HandleNotification(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Notify worker stopped")
}
