package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource/mssql"
	"github.com/finsight/analytics-engine/pkg/config"
	"github.com/finsight/analytics-engine/pkg/database"
	"github.com/finsight/analytics-engine/pkg/handlers"
	"github.com/finsight/analytics-engine/pkg/llm"
	"github.com/finsight/analytics-engine/pkg/logging"
	"github.com/finsight/analytics-engine/pkg/middleware"
	"github.com/finsight/analytics-engine/pkg/prompts"
	"github.com/finsight/analytics-engine/pkg/repositories"
	"github.com/finsight/analytics-engine/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("llm_endpoint", cfg.LLM.Endpoint),
		zap.String("llm_model", cfg.LLM.Model))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	adapter, err := mssql.NewAdapter(ctx, cfg.Datasource.MSSQLConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to datasource", zap.Error(err))
	}
	defer func() { _ = adapter.Close() }()

	llmClient, err := llm.NewClient(&llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	schemaCache := services.NewSchemaCache(adapter,
		time.Duration(cfg.Schema.TTLSeconds)*time.Second, logger)
	if _, err := schemaCache.Get(ctx); err != nil {
		// Warm-up only; the cache retries on the first question.
		logger.Warn("Schema preload failed", zap.Error(err))
	}

	repo := repositories.NewConversationRepository(db, logger)
	analytics := services.NewAnalyticsService(
		repo, schemaCache, llmClient, prompts.NewBuilder(logger), adapter, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(analytics, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: middleware.RequestLogger(logger)(mux),
	}

	go func() {
		logger.Info("Starting analytics-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}

// runMigrations opens a dedicated connection for golang-migrate so closing
// the migrator does not disturb the service pool.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = migrationDB.Close() }()

	return database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
