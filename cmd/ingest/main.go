package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk-insight/ticket-ingest/internal/api/http"
	"github.com/helpdesk-insight/ticket-ingest/internal/api/http/handlers"
	"github.com/helpdesk-insight/ticket-ingest/internal/auth"
	"github.com/helpdesk-insight/ticket-ingest/internal/classify"
	"github.com/helpdesk-insight/ticket-ingest/internal/config"
	"github.com/helpdesk-insight/ticket-ingest/internal/events"
	"github.com/helpdesk-insight/ticket-ingest/internal/observability"
	"github.com/helpdesk-insight/ticket-ingest/internal/persistence"
	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
	"github.com/helpdesk-insight/ticket-ingest/internal/repository"
	"github.com/helpdesk-insight/ticket-ingest/internal/service"
	"github.com/helpdesk-insight/ticket-ingest/internal/ticketsource"
	"github.com/helpdesk-insight/ticket-ingest/internal/worker"
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, cfg.Worker.Count, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	rulebook := classify.DefaultRulebook()
	if cfg.Rules.Path != "" {
		rulebook, err = classify.LoadRulebook(cfg.Rules.Path)
		if err != nil {
			logger.Fatal("failed to load rulebook", zap.Error(err))
		}
	}
	engine, err := classify.NewEngine(rulebook)
	if err != nil {
		logger.Fatal("invalid rulebook", zap.Error(err))
	}

	loc := cfg.Sync.Location()
	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	cursorRepo := repository.NewSyncCursorRepository(pool)
	lookupRepo := repository.NewLookupRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	service.NewMonitor(dispatcher, metrics, logger).RegisterHandlers()

	jobs := queue.New(redis.Client, queue.Options{
		Name:        cfg.Queue.Name,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   cfg.Queue.RetryBaseDelay(),
		DedupTTL:    cfg.Queue.DedupTTL(),
	}, logger)

	client := ticketsource.NewClient(ticketsource.Config{
		BaseURL:       cfg.TicketAPI.BaseURL,
		AgentID:       cfg.TicketAPI.AgentID,
		ApplicationID: cfg.TicketAPI.ApplicationID,
		Username:      cfg.TicketAPI.Username,
		Password:      cfg.TicketAPI.Password,
		Timeout:       cfg.TicketAPI.Timeout(),
	}, logger)

	lookups := service.NewLookupService(lookupRepo, cfg.Lookup.RefreshInterval(), logger)
	enrichment := service.NewEnrichmentService(service.EnrichmentDependencies{
		Source:      client,
		Engine:      engine,
		Location:    loc,
		Concurrency: cfg.Worker.EnrichConcurrency,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	batches := service.NewBatchService(lookups, enrichment, ticketRepo, dispatcher, logger)
	imports := service.NewImportService(service.ImportDependencies{
		Engine:     engine,
		Lookups:    lookups,
		Tickets:    ticketRepo,
		Queue:      jobs,
		Dispatcher: dispatcher,
		Logger:     logger,
		Location:   loc,
		Dir:        cfg.Import.Dir,
	})
	syncer := service.NewSyncService(service.SyncDependencies{
		Lister:     client,
		Tickets:    ticketRepo,
		Cursor:     cursorRepo,
		Queue:      jobs,
		Dispatcher: dispatcher,
		Logger:     logger,
		Settings: service.SyncSettings{
			PageSize:        cfg.Sync.PageSize,
			PageMaxAttempts: cfg.Sync.PageMaxAttempts,
			LookbackDays:    cfg.Sync.LookbackDays,
			Location:        loc,
		},
	})

	workers := worker.NewPool(jobs, worker.PoolConfig{
		Workers:    cfg.Worker.Count,
		JobTimeout: cfg.Worker.JobTimeout(),
	}, logger)
	workers.Handle(service.BatchJobName, batches.Process)
	workers.Handle(service.ImportJobName, imports.Process)
	workers.OnFailure(func(ctx context.Context, job queue.Job, dead bool, cause error) {
		_ = dispatcher.Publish(ctx, events.New(events.EventBatchFailed, events.BatchFailedPayload{
			JobID:    job.ID,
			Attempts: job.Attempts,
			Dead:     dead,
			Error:    cause.Error(),
		}))
	})

	if moved, err := jobs.Recover(ctx); err != nil {
		logger.Fatal("failed to recover queued jobs", zap.Error(err))
	} else if moved > 0 {
		logger.Info("requeued interrupted jobs", zap.Int("count", moved))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		workers.Run(ctx)
	}()

	scheduler := worker.NewScheduler(loc, logger)
	if cfg.Sync.Enabled {
		err := scheduler.Add("ticket-sync", cfg.Sync.Cron, func(ctx context.Context) error {
			_, err := syncer.RunCycle(ctx)
			if errors.Is(err, service.ErrCycleRunning) {
				logger.Info("sync tick skipped, cycle already running")
				return nil
			}
			return err
		})
		if err != nil {
			logger.Fatal("failed to schedule sync", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("sync scheduled", zap.String("cron", cfg.Sync.Cron), zap.String("timezone", cfg.Sync.Timezone))
	}

	tokens := auth.NewTokenManager(cfg.Auth.AdminJWTSecret, 0)
	syncAPI := handlers.NewSyncHandler(ctx, syncer, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Sync:           syncAPI,
		Imports:        handlers.NewImportHandler(imports),
		Jobs:           handlers.NewJobsHandler(jobs),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if cfg.Sync.Enabled {
		scheduler.Stop()
	}
	cancel()
	syncAPI.Wait()
	wg.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
