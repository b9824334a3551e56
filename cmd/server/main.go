/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the freelancers dashboard API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (YAML file, FREELANCE_* environment), then apply flags
  2. Build the slog logger
  3. Open the configured store (sqlite, mongo or memory)
  4. Create API handler and router
  5. Start the repair scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --config       YAML config file
  --port         HTTP server port
  --store        Store driver: sqlite, mongo, memory
  --db           SQLite database path (":memory:" for in-memory)
  --mongo-uri    MongoDB connection string
  --log-level    debug, info, warn, error
  --no-repair    Disable the background repair scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the repair scheduler
  4. Close the store

EXAMPLES:
  ./server --db=./data/freelance.db
  ./server --store=mongo --mongo-uri=mongodb://localhost:27017
  ./server --store=memory --port=3000

SEE ALSO:
  - config/config.go: Configuration keys and environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/warp/freelancers-dashboard/api"
	"github.com/warp/freelancers-dashboard/billing"
	memstore "github.com/warp/freelancers-dashboard/billing/store"
	"github.com/warp/freelancers-dashboard/config"
	"github.com/warp/freelancers-dashboard/store/mongostore"
	"github.com/warp/freelancers-dashboard/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to YAML config file")
	port := flagSet.Int("port", 0, "HTTP server port")
	driver := flagSet.String("store", "", "store driver: sqlite, mongo, memory")
	dbPath := flagSet.String("db", "", "SQLite database path")
	mongoURI := flagSet.String("mongo-uri", "", "MongoDB connection string")
	logLevel := flagSet.String("log-level", "", "log level: debug, info, warn, error")
	noRepair := flagSet.Bool("no-repair", false, "disable the background repair scheduler")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags override file and environment
	if flagSet.Changed("port") {
		cfg.Server.Port = *port
	}
	if flagSet.Changed("store") {
		cfg.Store.Driver = *driver
	}
	if flagSet.Changed("db") {
		cfg.Store.Path = *dbPath
	}
	if flagSet.Changed("mongo-uri") {
		cfg.Store.Mongo.URI = *mongoURI
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if *noRepair {
		cfg.Repair.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store opened", "driver", cfg.Store.Driver)

	handler := api.NewHandler(store, cfg.Store.Driver, logger)
	handler.Invoices.MaxAttempts = cfg.Invoices.MaxAttempts
	handler.DrainLimit = cfg.Repair.BatchSize

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	scheduler := api.NewRepairScheduler(handler.Repair, logger)
	scheduler.Enabled = cfg.Repair.Enabled
	scheduler.Interval = cfg.Repair.Interval
	scheduler.BatchSize = cfg.Repair.BatchSize
	scheduler.RecomputeEvery = cfg.Repair.RecomputeEvery
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore returns the configured store and its close function.
func openStore(ctx context.Context, cfg config.StoreConfig) (billing.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, func() { s.Close() }, nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongostore.New(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.Close(closeCtx)
		}, nil

	case config.DriverMemory:
		return memstore.NewMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
