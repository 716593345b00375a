// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jjckrbbt/tenant-guidance/internal/api"
	"github.com/jjckrbbt/tenant-guidance/internal/config"
	"github.com/jjckrbbt/tenant-guidance/internal/connections"
	"github.com/jjckrbbt/tenant-guidance/internal/genai"
	"github.com/jjckrbbt/tenant-guidance/internal/guidance"
	"github.com/jjckrbbt/tenant-guidance/internal/logger"
	"github.com/jjckrbbt/tenant-guidance/internal/metrics"
	"github.com/jjckrbbt/tenant-guidance/internal/prompts"
	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

func main() {
	// 1. Load application configuration FIRST.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Sentry. An empty DSN leaves the client disabled.
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		TracesSampleRate: 1.0,
	}); err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}
	defer sentry.Flush(2 * time.Second)

	// 3. Initialize the Logger.
	logger.InitLogger(cfg.AppEnv)
	appLogger := logger.L()
	appLogger.Info("Function \"get-guidance\" starting up...", "environment", cfg.AppEnv, "store", cfg.StoreBackend, "llm", cfg.LLMBackend)

	if cfg.GoogleAIAPIKey == "" {
		appLogger.Warn("GOOGLE_AI_API_KEY is not set; every guidance request will fail until it is configured")
	}

	// 4. Load the prompt profile.
	profile, err := prompts.Load(cfg.PromptConfigPath)
	if err != nil {
		appLogger.Error("Failed to load prompt profile", slog.Any("error", err))
		os.Exit(1)
	}

	// 5. Connect the document store.
	var (
		docs  store.DocumentMatcher
		ready func(ctx context.Context) error
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		dbClient, err := connections.ConnectDB(cfg.DatabaseURL, appLogger.With("component", "database_connector"))
		if err != nil {
			appLogger.Error("Failed to connect to database at startup", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbClient.Close()
		docs = store.NewPostgresStore(dbClient.Pool, appLogger)
		ready = dbClient.Ping
	default:
		docs = store.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseAnonKey, appLogger)
	}
	appLogger.Info("Document store initialized.")

	// 6. Initialize Core Application Components.
	generator, embedder := genai.NewClients(cfg, appLogger)
	m := metrics.New(prometheus.DefaultRegisterer)
	svc := guidance.NewService(cfg, generator, embedder, docs, profile, m, appLogger)
	handler := api.NewGuidanceHandler(svc, m, appLogger)

	// 7. Build the router.
	e := api.NewRouter(api.RouterOptions{
		Guidance: handler,
		Logger:   appLogger,
		Ready:    ready,
		Gatherer: prometheus.DefaultGatherer,
		Middleware: []echo.MiddlewareFunc{
			sentryecho.New(sentryecho.Options{Repanic: true}),
		},
	})

	// 8. Start the HTTP server.
	address := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	go func() {
		appLogger.Info("HTTP Server starting on port", "port", cfg.Port)
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP Server shutdown failed", slog.Any("error", err))
	}
	appLogger.Info("HTTP Server stopped gracefully.")
}
