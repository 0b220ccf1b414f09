/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Hey Jack gift-pool server: HTTP API plus the
  scheduled activation/reconciliation/notification run.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger
  3. Initialize store (SQLite or PostgreSQL)
  4. Initialize mail sender (log or HTTP API)
  5. Create runner and scheduler
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database
  -once    Run the pipeline once, print the report and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Wait for a running scheduled job to finish
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/heyjack.db"

  # One-off run from cron or CI
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server -once

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  See config/config.go for every key and its default.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Cron trigger
  - engine/runner.go: The pipeline
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heyjack/giftpool/api"
	"github.com/heyjack/giftpool/config"
	"github.com/heyjack/giftpool/engine"
	"github.com/heyjack/giftpool/mail"
	"github.com/heyjack/giftpool/store/postgres"
	"github.com/heyjack/giftpool/store/sqlite"
)

// appStore is a store the server can also close.
type appStore interface {
	api.Store
	Close() error
}

func main() {
	// Flags
	port := flag.String("port", "", "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	once := flag.Bool("once", false, "Run the pipeline once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer store.Close()

	// Initialize mail sender
	sender, err := newSender(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize mail sender", zap.String("provider", cfg.MailProvider), zap.Error(err))
	}

	loc := cfg.Location()
	runner := engine.NewRunner(store, sender, engine.RunConfig{
		LookaheadDays:    cfg.LookaheadDays,
		Location:         loc,
		NotifyEnabled:    cfg.NotifyEnabled,
		BatchSize:        cfg.NotifyBatchSize,
		OperationTimeout: cfg.OperationTimeout,
	}, logger.Named("runner"))
	scheduler := api.NewScheduler(runner, store, cfg.RunSchedule, loc, logger.Named("scheduler"))

	if *once {
		code := runOnce(ctx, scheduler, logger)
		store.Close()
		logger.Sync()
		os.Exit(code)
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	if cfg.RunOnStart {
		go func() {
			if _, err := scheduler.RunNow(ctx, api.TriggerStartup, engine.RunOptions{}); err != nil {
				logger.Error("startup run failed", zap.Error(err))
			}
		}()
	}

	// Initialize handler
	handler := api.NewHandler(store, scheduler, logger.Named("api"))
	handler.Today = runner.Today

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger.Named("http"),
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("mail_provider", cfg.MailProvider),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled run still in progress at shutdown")
	}

	logger.Info("server stopped")
}

// runOnce executes a single run and prints its report. The exit code is 1
// when the run could not load its input, 0 otherwise.
func runOnce(ctx context.Context, scheduler *api.Scheduler, logger *zap.Logger) int {
	record, err := scheduler.RunNow(ctx, api.TriggerCLI, engine.RunOptions{})
	if record != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(api.NewRunDTO(*record)); encErr != nil {
			logger.Error("failed to print report", zap.Error(encErr))
		}
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return 1
	}
	return 0
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (appStore, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

func newSender(cfg *config.Config, logger *zap.Logger) (engine.Sender, error) {
	switch cfg.MailProvider {
	case config.MailProviderHTTP:
		return mail.NewHTTPSender(mail.HTTPConfig{
			APIURL:   cfg.MailAPIURL,
			APIKey:   cfg.MailAPIKey,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
			Timeout:  cfg.OperationTimeout,
		}, logger.Named("mail"))
	default:
		return mail.NewLogSender(logger.Named("mail")), nil
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		zapConfig.Level = lvl
	}
	return zapConfig.Build()
}
