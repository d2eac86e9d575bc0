package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"attendease/internal/config"
	"attendease/internal/logging"
	"attendease/internal/queue"
	"attendease/internal/store"
	"attendease/internal/tally"
)

// Worker consumes attendance events and maintains the daily tally in Redis.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Production(), cfg.LogLevel).With("component", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Error("worker needs a shared queue; QUEUE_BACKEND=memory is consumed inside the api process")
		os.Exit(1)
	}

	redisCli := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	defer redisCli.Close()
	if !redisCli.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will keep retrying", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisCli.Client, queue.DefaultKey)
	counter := tally.NewRedisCounter(redisCli.Client)

	logger.Info("worker started, waiting for messages", "queue", queue.DefaultKey)
	if err := tally.Run(ctx, q, counter, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
