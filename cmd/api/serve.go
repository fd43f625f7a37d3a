package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/eris-support/triage-service/internal/api/http"
	"github.com/eris-support/triage-service/internal/api/http/handlers"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/autoreply"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/escalation"
	"github.com/eris-support/triage-service/internal/events"
	"github.com/eris-support/triage-service/internal/export"
	"github.com/eris-support/triage-service/internal/observability"
	"github.com/eris-support/triage-service/internal/persistence"
	"github.com/eris-support/triage-service/internal/service"
	"github.com/eris-support/triage-service/internal/store"
	"github.com/eris-support/triage-service/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if rt.pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, rt.pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := worker.NewPool(cfg.Notification.Workers, cfg.Notification.QueueSize, logger.Named("worker"))
	pool.Start()

	dispatcher := events.NewInMemoryDispatcher()
	if redis.Enabled() {
		events.NewRedisBroadcaster(redis.Client, cfg.Redis.ChangesChannel, logger).Register(dispatcher)
	}
	kafka := events.NewKafkaProducer(events.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic, logger)
	defer kafka.Close() //nolint:errcheck
	if kafka.Enabled() {
		events.SubscribeAll(dispatcher, events.ChangeTypes, pool.Wrap(kafka.Handle))
	}

	deps := store.Dependencies{
		Backend:    rt.backend,
		Machine:    escalation.New(cfg.Escalation.Triggers),
		Dispatcher: dispatcher,
		Logger:     logger.Named("store"),
	}
	if redis.Enabled() {
		deps.Cache = persistence.NewRedisSnapshotCache(redis.Client, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL())
	}
	ticketStore := store.New(deps)
	if err := ticketStore.Load(ctx); err != nil {
		logger.Fatal("failed to load tickets", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Auth, rt.operators)
	if cfg.Auth.BootstrapEmail != "" && cfg.Auth.BootstrapPassword != "" {
		op, created, err := authService.EnsureOperator(ctx, cfg.Auth.BootstrapEmail, "Administrator", cfg.Auth.BootstrapPassword, domain.OperatorRoleAdmin)
		if err != nil {
			logger.Fatal("failed to bootstrap operator", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap operator created", zap.String("operator_id", op.ID), zap.String("email", op.Email))
		}
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      ticketStore,
		Replier:    autoreply.New(cfg.AutoReply.URL, cfg.AutoReply.Timeout(), cfg.AutoReply.Greeting),
		Serializer: export.NewSerializer(cfg.Export.Location()),
		Logger:     logger.Named("tickets"),
	})

	notifications := service.NewNotificationService(dispatcher, ticketStore, logger.Named("notify"), cfg.Notification, cfg.Telegram.BotSecret)
	worker.StartNotificationWorker(notifications, pool)

	var scheduler *cron.Cron
	if deps.Cache != nil {
		scheduler, err = worker.StartSnapshotScheduler(cfg.Redis.SnapshotSchedule, ticketStore, logger.Named("snapshot"))
		if err != nil {
			logger.Fatal("invalid snapshot schedule", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	health := handlers.HealthDependencies{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Store:       ticketStore,
		Metrics:     metrics,
	}
	if rt.pg.Enabled() {
		health.Postgres = rt.pg
	}
	if redis.Enabled() {
		health.Redis = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(health),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Chat:           handlers.NewChatHandler(ticketService),
		Events:         handlers.NewEventsHandler(ticketStore, logger.Named("sse")),
		Telegram:       handlers.NewTelegramHandler(ticketService, authService),
		KnowledgeBase:  handlers.NewKnowledgeBaseHandler(service.NewKnowledgeBaseService(rt.knowledge)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), rt.operators),
		BotSecret:      cfg.Telegram.BotSecret,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("degraded", ticketStore.Degraded()))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	pool.Stop(shutdownCtx)
	if !ticketStore.Degraded() {
		if err := ticketStore.SaveSnapshot(shutdownCtx); err != nil {
			logger.Warn("final snapshot failed", zap.Error(err))
		}
	}
	return nil
}
