package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/metrics"
	"github.com/haneul-labs/crm-delivery/pkg/pubsub"
	"github.com/haneul-labs/crm-delivery/pkg/redis"
	"github.com/haneul-labs/crm-delivery/pkg/scheduler"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "schedule-monitor"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "schedule-monitor",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	lock, err := scheduler.NewRedisLock(redisClient, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	monitor := scheduler.NewMonitor(
		scheduler.NewRedisGateway(redisClient, cfg.Scheduler),
		newTaskPublisher(pubsubClient),
		lock,
		cfg.Scheduler,
		logg,
		metrics.NewSweepMetrics(prometheus.DefaultRegisterer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting schedule monitor")

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "schedule monitor stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "schedule monitor shutting down gracefully")
}
