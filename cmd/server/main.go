/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the microgreen storefront cart server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load YAML config
  2. Build the zap logger
  3. Initialize SQLite store
  4. Rehydrate the cart ledger, create the checkout session
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional; defaults apply without it)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for an in-memory database
  -dev     Human-readable debug logging
  -static  Built frontend directory (overrides server.static_dir)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/storefront.db"

  # Run with in-memory database and debug logs
  ./server -db=":memory:" -dev

  # Run with a config file, on a different port
  ./server -config=storefront.yaml -port=3000

SEE ALSO:
  - config/config.go: Config file format and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
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

	"github.com/microgreen/storefront/api"
	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/checkout"
	"github.com/microgreen/storefront/config"
	"github.com/microgreen/storefront/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	dev := flag.Bool("dev", false, "development logging")
	staticDir := flag.String("static", "", "frontend directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Cart and checkout
	opts := cfg.LedgerOptions()
	opts.Logger = logger.Named("cart")
	ledger, err := cart.NewLedger(ctx, store, opts)
	if err != nil {
		return err
	}
	unsubscribe := ledger.Subscribe(func(s cart.Snapshot) {
		logger.Debug("cart changed",
			zap.Int("items", s.TotalItems()),
			zap.Int64("total_price", s.TotalPrice()),
			zap.Int("recently_removed", len(s.RecentlyRemoved)))
	})
	defer unsubscribe()

	session, err := checkout.NewSession(ledger, checkout.Options{
		Zones:          cfg.Zones(),
		PromoCode:      cfg.PromoCode(),
		PaymentMethods: cfg.Methods(),
		Recorder:       store,
		Logger:         logger.Named("checkout"),
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(ledger, session, logger.Named("http"))
	handler.Orders = store

	router := api.NewRouter(handler, api.RouterOptions{
		OrderLimiter: api.NewOrderLimiter(cfg.Checkout.OrdersPerMinute),
		StaticDir:    cfg.Server.StaticDir,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
			zap.Int("cart_items", ledger.TotalItems()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
