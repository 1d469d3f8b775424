/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence request server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, parse command-line flags
  2. Load configuration (defaults, YAML file, environment, flags)
  3. Build the logger
  4. Load the rule document (built-in when no rules file is configured)
  5. Open the repository (sqlite or memory) and seed demo data
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/absence.db"

  # Run with the in-memory repository
  ABSENCE_DB_DRIVER=memory ./server

  # Run on different port with custom rules
  ABSENCE_RULES_FILE=./rules.yaml ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - factory/rules.go: Rule document
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/absence-engine/api"
	"github.com/warp/absence-engine/config"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/store/memory"
	"github.com/warp/absence-engine/store/sqlite"
	"github.com/warp/absence-engine/timeoff"
	"go.uber.org/zap"
)

// backend is what a storage driver provides.
type backend interface {
	timeoff.Repository
	timeoff.UserLookup
}

func main() {
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	rules := factory.DefaultRules()
	if cfg.RulesFile != "" {
		if rules, err = factory.LoadRules(cfg.RulesFile); err != nil {
			logger.Fatal("failed to load rules", zap.String("path", cfg.RulesFile), zap.Error(err))
		}
	}

	ctx := context.Background()
	repo, closeRepo, err := openBackend(ctx, cfg.Database, rules)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer closeRepo()

	users := timeoff.NewCachedUsers(repo, cfg.Auth.UserCacheTTL)

	// Initialize handler
	handler := api.NewHandler(repo, users, rules, logger)
	handler.UserHeader = cfg.Auth.HeaderKey

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins...)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("kinds", rules.KindNames()),
			zap.Int("holidays", len(rules.Holidays)),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		return
	}

	logger.Info("server stopped")
}

// openBackend opens the configured storage driver. Holidays stored in the
// sqlite database are added to rules.
func openBackend(ctx context.Context, db config.DatabaseConfig, rules *factory.Rules) (backend, func(), error) {
	if db.Driver == "memory" {
		if db.Seed {
			return memory.NewSeeded(memory.WithLabels(rules.Labels)), func() {}, nil
		}
		return memory.New(memory.WithLabels(rules.Labels)), func() {}, nil
	}

	store, err := sqlite.New(db.Path, sqlite.WithLabels(rules.Labels))
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { store.Close() }

	if db.Seed {
		if err := store.SeedDemo(ctx); err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	extra, err := store.Holidays(ctx)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("load holidays: %w", err)
	}
	rules.AddHolidays(extra...)
	return store, closeStore, nil
}
