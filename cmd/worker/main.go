package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/hearthledger/hearthledger/internal/app"
	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/ledger"
	"github.com/hearthledger/hearthledger/internal/obligation"
	"github.com/hearthledger/hearthledger/internal/observability"
	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/platform/cache"
	"github.com/hearthledger/hearthledger/internal/platform/db"
	"github.com/hearthledger/hearthledger/internal/summary"
	"github.com/hearthledger/hearthledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	calendarRepo := calendar.NewRepository(pool)
	calendarService := calendar.NewService(calendarRepo)

	periodRepo := period.NewRepository(pool)
	periodService := period.NewService(calendarService, periodRepo, logger, metrics, cfg.OccurrenceTolerance)

	obligationRepo := obligation.NewRepository(pool)
	obligationService := obligation.NewService(obligationRepo, periodService, nil, logger, cfg.GenerationHorizon)

	ledgerRepo := ledger.NewRepository(pool)
	propagator := ledger.NewPropagator(periodRepo, ledgerRepo, calendarService, metrics, logger)

	summaryRepo := summary.NewRepository(pool)
	summaryCache := summary.NewCache(redisClient, cfg.SummaryCacheTTL)
	summaryService := summary.NewService(summaryRepo, periodRepo, calendarService, obligationService, summaryCache, metrics, logger, cfg.SummaryDebounce)

	txJob := jobs.NewTransactionChangedJob(propagator, jobClient, logger)
	instanceJob := jobs.NewInstanceChangedJob(periodService, summaryService, logger)
	backfillJob := jobs.NewObligationCreatedJob(obligationService, propagator, logger)
	warmJob := jobs.NewSummaryPreCreateJob(summaryService, logger)
	extendJob := jobs.NewGenerationExtendJob(obligationService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTransactionChanged, Handler: txJob.Handle},
			{Type: jobs.TaskInstanceChanged, Handler: instanceJob.Handle},
			{Type: jobs.TaskObligationCreated, Handler: backfillJob.Handle},
			{Type: jobs.TaskSummaryPreCreate, Handler: warmJob.Handle},
			{Type: jobs.TaskGenerationExtend, Handler: extendJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{
				Spec:    jobs.DefaultGenerationExtendSpec,
				Task:    jobs.NewGenerationExtendTask(),
				Options: []asynq.Option{asynq.MaxRetry(3)},
			},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
