package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/database"
	"github.com/stemsi/examprint/internal/handler"
	"github.com/stemsi/examprint/internal/logger"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/stemsi/examprint/internal/router"
	"github.com/stemsi/examprint/internal/service"
	"github.com/stemsi/examprint/internal/validator"
	"github.com/stemsi/examprint/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting examprint server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	setRepo := repository.NewSetRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	printRepo := repository.NewPrintRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	notifier := service.NewRedisNotifier(rdb)
	authService := service.NewAuthService(cfg, rdb)
	catalogService := service.NewCatalogService(examRepo, setRepo, questionRepo, printRepo, notifier, cfg.DefaultMaxGrade, log)
	sessionService := service.NewSessionService(examRepo, sessionRepo, groupRepo, log)
	logService := service.NewLogService(examRepo, sessionRepo, printRepo, logRepo, notifier, log)
	printService := service.NewPrintService(service.PrintDeps{
		Exams:     examRepo,
		Sessions:  sessionRepo,
		Groups:    groupRepo,
		Sets:      setRepo,
		Questions: questionRepo,
		Prints:    printRepo,
		Logs:      logService,
		Notifier:  notifier,
	}, cfg.MaxQuestionsPerPrint, log)
	resultService := service.NewResultService(examRepo, sessionRepo, printRepo, questionRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(catalogService),
		Session: handler.NewSessionHandler(sessionService),
		Print:   handler.NewPrintHandler(printService),
		Result:  handler.NewResultHandler(resultService, logService),
		Monitor: handler.NewMonitorHandler(rdb, sessionService, resultService, log),
		WS:      handler.NewWSHandler(printService, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	rescoreWorker := worker.NewRescoreWorker(rdb, resultService, printRepo, cfg.RescoreBatchSize, cfg.RescoreBatchTimeout, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		rescoreWorker.Start(workerCtx)
	}()

	sweeper := worker.NewRescoreSweeper(rdb, sessionRepo, printRepo, notifier, cfg.RescoreSweepCron, cfg.RescoreSweepWindow, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.RescoreSweepCron).Msg("Failed to schedule rescore sweep")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the rescore worker flushes its batch first.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
