package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/orderdesk/internal/app"
	"github.com/odyssey-erp/orderdesk/internal/customers"
	"github.com/odyssey-erp/orderdesk/internal/integrity"
	"github.com/odyssey-erp/orderdesk/internal/observability"
	"github.com/odyssey-erp/orderdesk/internal/orders"
	"github.com/odyssey-erp/orderdesk/internal/platform/cache"
	"github.com/odyssey-erp/orderdesk/internal/platform/db"
	"github.com/odyssey-erp/orderdesk/internal/products"
	"github.com/odyssey-erp/orderdesk/internal/shared"
	"github.com/odyssey-erp/orderdesk/internal/view"
	"github.com/odyssey-erp/orderdesk/jobs"
	"github.com/odyssey-erp/orderdesk/migrations"
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
	slog.SetDefault(logger)

	if cfg.DBAutoMigrate {
		if err := db.Migrate(migrations.FS, cfg.PGDSN, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "orderdesk_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	pages := &view.Pages{Templates: templates, CSRF: csrfManager, Logger: logger}
	metrics := observability.NewMetrics()

	queueOpts, err := cache.AsynqOpts(cfg.RedisAddr)
	if err != nil {
		logger.Error("queue options", slog.Any("error", err))
		os.Exit(1)
	}
	var notifier orders.Notifier
	if cfg.NotifyEnabled {
		client := jobs.NewClient(queueOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("queue client close", slog.Any("error", err))
			}
		}()
		notifier = client
	}

	policy := integrity.NewPolicy()

	customerService := customers.NewService(customers.NewRepository(dbpool), policy)
	productService := products.NewService(products.NewRepository(dbpool), policy)
	orderService := orders.NewService(orders.NewRepository(dbpool), policy, notifier, logger).WithRecorder(metrics)

	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pages:            pages,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Dashboard:        app.NewDashboard(customerService, productService, orderService),
		CustomersHandler: customers.NewHandler(logger, customerService, pages),
		CustomersAPI:     customers.NewAPIHandler(logger, customerService),
		ProductsHandler:  products.NewHandler(logger, productService, pages),
		ProductsAPI:      products.NewAPIHandler(logger, productService),
		OrdersHandler:    orders.NewHandler(logger, orderService, pages),
		OrdersAPI:        orders.NewAPIHandler(logger, orderService).WithIdempotency(shared.NewIdempotencyStore(redisClient, 24*time.Hour)),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
