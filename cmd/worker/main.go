package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haneul-labs/crm-delivery/internal/email/audit"
	"github.com/haneul-labs/crm-delivery/internal/email/consumer"
	"github.com/haneul-labs/crm-delivery/internal/email/history"
	"github.com/haneul-labs/crm-delivery/internal/email/mailer"
	"github.com/haneul-labs/crm-delivery/internal/email/schedules"
	"github.com/haneul-labs/crm-delivery/internal/email/templates"
	"github.com/haneul-labs/crm-delivery/internal/users"
	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/db"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/metrics"
	"github.com/haneul-labs/crm-delivery/pkg/migrate"
	"github.com/haneul-labs/crm-delivery/pkg/outbox"
	"github.com/haneul-labs/crm-delivery/pkg/pubsub"
	"github.com/haneul-labs/crm-delivery/pkg/redis"
	"github.com/haneul-labs/crm-delivery/pkg/scheduler"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "delivery-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "delivery-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(cfg.Outbox, logg)
	if err := audit.NewSubscriber(logg).Register(bus); err != nil {
		logg.Error(ctx, "failed to register audit subscriber", err)
		os.Exit(1)
	}
	if err := bus.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start event bus", err)
		os.Exit(1)
	}
	defer func() {
		if err := bus.Drain(cfg.Outbox.DrainTimeout); err != nil {
			logg.Error(context.Background(), "event bus drain incomplete", err)
		}
	}()

	conn := dbClient.DB()
	scheduleService := schedules.NewService(schedules.ServiceParams{
		Publisher: outbox.NewPublisher(dbClient, bus, logg),
		Repo:      schedules.NewRepository(conn),
		Templates: templates.NewRepository(conn),
		History:   history.NewRepository(conn),
		Users:     users.NewRepository(conn),
		Gateway:   scheduler.NewRedisGateway(redisClient, cfg.Scheduler),
		Mail:      mailer.NewLogMailer(logg),
		Sender:    cfg.Mail.Sender,
		Logger:    logg,
	})

	dispatches := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
	taskConsumer, err := consumer.New(
		scheduleService,
		pubsubClient.ScheduledTaskSubscription(),
		scheduler.NewDefaultRegistry(),
		dispatches,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create task consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: taskConsumer,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting delivery worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "delivery worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "delivery worker shutting down gracefully")
}
