package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dukerupert/verdandi/internal"
	"github.com/dukerupert/verdandi/internal/gateway"
	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/middleware"
	"github.com/dukerupert/verdandi/internal/postgres"
	"github.com/dukerupert/verdandi/internal/router"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/dukerupert/verdandi/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// Initialize business metrics
	telemetry.InitBusinessMetrics("verdandi")

	// Initialize payment gateway client. Dev without credentials falls
	// back to the mock client so the API can be exercised locally.
	var gatewayClient gateway.Client
	if cfg.Env == "dev" && cfg.Gateway.APIKey == "" {
		logger.Warn("PORTONE_API_KEY not set, using mock gateway client")
		gatewayClient = gateway.NewMockClient()
	} else {
		client, err := gateway.NewPortOneClient(gateway.Config{
			BaseURL:        cfg.Gateway.BaseURL,
			APIKey:         cfg.Gateway.APIKey,
			APISecret:      cfg.Gateway.APISecret,
			TimeoutSeconds: cfg.Gateway.TimeoutSeconds,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize gateway client: %w", err)
		}
		gatewayClient = client
		logger.Info("Payment gateway client initialized", "base_url", cfg.Gateway.BaseURL)
	}

	// Initialize services
	reconciliationService := service.NewReconciliationService(store, logger)
	verificationService := service.NewVerificationService(gatewayClient, reconciliationService, logger)
	stockService := service.NewStockService(store, logger)
	orderService := service.NewOrderService(store, stockService, logger)
	productService := service.NewProductService(store)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(verificationService, stockService, orderService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	productHandler := handler.NewProductHandler(productService, logger)

	// Start reconciliation retry worker
	if cfg.Worker.Enabled {
		w := worker.NewWorker(store, reconciliationService, worker.Config{
			PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
			MaxAttempts:  int32(cfg.Worker.MaxAttempts),
		}, logger)
		go func() {
			if err := w.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("reconciliation worker stopped", "error", err)
			}
		}()
	}

	// Build router with global middleware
	metrics := middleware.NewMetrics("verdandi")
	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		middleware.Recover,
		metrics.Middleware,
	)

	r.Post("/api/payments/complete", paymentHandler.CompletePayment)
	r.Post("/api/orders", orderHandler.CreateOrder)
	r.Get("/api/orders", orderHandler.ListOrders)
	r.Get("/api/orders/{id}", orderHandler.GetOrder)
	r.Post("/api/orders/{id}/cancel", orderHandler.CancelOrder)
	r.Post("/api/products", productHandler.CreateProduct)
	r.Get("/api/products", productHandler.ListProducts)
	r.Get("/api/products/{id}", productHandler.GetProduct)

	r.Handle(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "addr", addr, "env", cfg.Env)
	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
