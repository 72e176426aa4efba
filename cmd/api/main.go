package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/analytics"
	httptransport "github.com/spec-kit/ticket-ingest/internal/api/http"
	"github.com/spec-kit/ticket-ingest/internal/api/http/handlers"
	"github.com/spec-kit/ticket-ingest/internal/breaker"
	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/ingest"
	"github.com/spec-kit/ticket-ingest/internal/lock"
	"github.com/spec-kit/ticket-ingest/internal/notify"
	"github.com/spec-kit/ticket-ingest/internal/observability"
	"github.com/spec-kit/ticket-ingest/internal/persistence"
	"github.com/spec-kit/ticket-ingest/internal/ratelimit"
	"github.com/spec-kit/ticket-ingest/internal/repository"
	"github.com/spec-kit/ticket-ingest/internal/syncer"
)

// notifyBreakerName keys the breaker guarding notification egress.
const notifyBreakerName = "notify"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("failed to connect mongodb", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		mongo.Close(closeCtx)
	}()

	if err := persistence.EnsureIndexes(ctx, mongo, logger); err != nil {
		logger.Fatal("failed to provision indexes", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	ticketRepo := repository.NewTicketRepository(mongo.Tickets())
	jobRepo := repository.NewJobRepository(mongo.Jobs())
	logRepo := repository.NewLogRepository(mongo.Logs())
	historyRepo := repository.NewHistoryRepository(mongo.History())
	lockRepo := repository.NewLockRepository(mongo.Locks())

	locks := lock.NewManager(lockRepo, cfg.Lock.TTL(), logger)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window())
	breakers := breaker.NewRegistry(breaker.Config{
		WindowSize:       cfg.Breaker.WindowSize,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown(),
	})

	pool := notify.NewPool(cfg.Notify, breakers.Get(notifyBreakerName), limiter, logger, metrics)

	engine := syncer.NewEngine(ticketRepo, historyRepo, logger)
	source := ingest.NewSourceClient(cfg.Source, limiter, logger)
	orchestrator := ingest.NewOrchestrator(cfg.Lock, ingest.Dependencies{
		Jobs:     jobRepo,
		Logs:     logRepo,
		Locks:    locks,
		Engine:   engine,
		Source:   source,
		Notifier: pool,
		Metrics:  metrics,
	}, logger)

	statsService := analytics.NewService(mongo.Tickets(), logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, mongo, source),
		Ingest:  handlers.NewIngestHandler(orchestrator, locks),
		Tickets: handlers.NewTicketsHandler(ticketRepo, engine),
		Stats:   handlers.NewStatsHandler(statsService),
		Ops:     handlers.NewOpsHandler(breakers, limiter),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		logger.Warn("notification pool drain timed out", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
