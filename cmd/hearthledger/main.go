package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	calendarRepo := calendar.NewRepository(dbpool)
	calendarService := calendar.NewService(calendarRepo)

	periodRepo := period.NewRepository(dbpool)
	periodService := period.NewService(calendarService, periodRepo, logger, metrics, cfg.OccurrenceTolerance)

	obligationRepo := obligation.NewRepository(dbpool)
	obligationService := obligation.NewService(obligationRepo, periodService, jobClient, logger, cfg.GenerationHorizon)
	obligationHandler := obligation.NewHandler(logger, obligationService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, jobClient, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	summaryRepo := summary.NewRepository(dbpool)
	summaryCache := summary.NewCache(redisClient, cfg.SummaryCacheTTL)
	if err := summaryCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("summary cache subscribe", slog.Any("error", err))
	}
	summaryService := summary.NewService(summaryRepo, periodRepo, calendarService, obligationService, summaryCache, metrics, logger, cfg.SummaryDebounce)
	summaryHandler := summary.NewHandler(logger, summaryService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ObligationHandler: obligationHandler,
		LedgerHandler:     ledgerHandler,
		SummaryHandler:    summaryHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
