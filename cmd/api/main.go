package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/quiz-runner-service/internal/adapter/chromedp_extractor"
	"github.com/user/quiz-runner-service/internal/adapter/httpclient"
	"github.com/user/quiz-runner-service/internal/adapter/openai"
	"github.com/user/quiz-runner-service/internal/adapter/postgres"
	redis_adapter "github.com/user/quiz-runner-service/internal/adapter/redis"
	"github.com/user/quiz-runner-service/internal/adapter/scoring"
	"github.com/user/quiz-runner-service/internal/delivery/http/handler"
	"github.com/user/quiz-runner-service/internal/delivery/http/router"
	"github.com/user/quiz-runner-service/internal/usecase"
	"github.com/user/quiz-runner-service/pkg/config"
	"github.com/user/quiz-runner-service/pkg/logger"
	"github.com/user/quiz-runner-service/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Logger ---
	logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	slog.Info("Logger initialized", "level", cfg.LogLevel)

	// --- Metrics ---
	metrics.Init()
	slog.Info("Metrics initialized")

	// --- Database Connections ---
	ctx := context.Background()

	// PostgreSQL
	pgConnString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	dbpool, err := pgxpool.New(ctx, pgConnString)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	slog.Info("PostgreSQL connection pool established")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connection established")

	// --- Adapters ---
	fetcher := httpclient.NewFetcher(cfg.FetchTimeout, cfg.MaxRetries, cfg.RetryBackoffBase)
	extractor := chromedp_extractor.NewChromedpExtractor(cfg.PageLoadTimeout, fetcher)
	llm := openai.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout, cfg.LLMMaxTokens, cfg.LLMTemperature)
	submitter := scoring.NewClient(cfg.FetchTimeout, cfg.MaxRetries, cfg.RetryBackoffBase, cfg.SubmitAllowedDomains)
	statusRepo := redis_adapter.NewRunStatusRepo(rdb)
	recordRepo := postgres.NewRunRecordRepo(dbpool)

	// --- Use Cases ---
	structurer := usecase.NewStructurer(llm)
	solver := usecase.NewSolver(llm, cfg.PageTextFallback)
	statusExpiry := 24 * time.Hour
	runner := usecase.NewChainRunner(extractor, structurer, solver, submitter, statusRepo, recordRepo, usecase.ChainConfig{
		MaxIterations:         cfg.MaxIterations,
		MaxChainDuration:      cfg.MaxChainDuration,
		QuestionPause:         cfg.QuestionPause,
		FollowNextOnIncorrect: cfg.FollowNextOnIncorrect,
		StatusExpiry:          statusExpiry,
	})

	// --- HTTP Server ---
	// Detached chains get a hard deadline just beyond their own time budget.
	chainTimeout := cfg.MaxChainDuration + time.Minute
	apiHandler := handler.NewHandler(runner, statusRepo, recordRepo, cfg.SecretKey, cfg.AllowedEmail, chainTimeout, statusExpiry)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("Starting server", "port", cfg.ServerPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
		os.Exit(1)
	}
}
