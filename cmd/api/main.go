package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/movilpay/vendorpay-backend/api/controllers"
	"github.com/movilpay/vendorpay-backend/api/routes"
	"github.com/movilpay/vendorpay-backend/internal/bankaccounts"
	"github.com/movilpay/vendorpay-backend/internal/commissions"
	"github.com/movilpay/vendorpay-backend/internal/inventory"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/internal/paybatches"
	"github.com/movilpay/vendorpay-backend/internal/payrequests"
	"github.com/movilpay/vendorpay-backend/internal/products"
	"github.com/movilpay/vendorpay-backend/internal/risk"
	"github.com/movilpay/vendorpay-backend/internal/sales"
	"github.com/movilpay/vendorpay-backend/internal/vendors"
	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/db"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/metrics"
	"github.com/movilpay/vendorpay-backend/pkg/migrate"
	"github.com/movilpay/vendorpay-backend/pkg/pubsub"
	"github.com/movilpay/vendorpay-backend/pkg/redis"
	"github.com/movilpay/vendorpay-backend/pkg/storage/gcs"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap object storage", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(ctx, "pubsub unavailable, notification events will only be persisted")
		pubsubClient = nil
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	gormDB := dbClient.DB()
	salesRepo := sales.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	vendorsRepo := vendors.NewRepository(gormDB)
	accountsRepo := bankaccounts.NewRepository(gormDB)
	commissionsRepo := commissions.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)
	requestsRepo := payrequests.NewRepository(gormDB)
	batchesRepo := paybatches.NewRepository(gormDB)

	inventoryClient, err := inventory.NewClient(cfg.Inventory, logg, settlementMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create inventory client", err)
		os.Exit(1)
	}

	scorer, err := risk.NewScorer(vendorsRepo, redisClient, cfg.Risk, logg)
	if err != nil {
		logg.Error(ctx, "failed to create risk scorer", err)
		os.Exit(1)
	}

	var notificationsSvc notifications.Service
	if pubsubClient != nil {
		notificationsSvc, err = notifications.NewService(notificationsRepo, pubsubClient, logg)
	} else {
		notificationsSvc, err = notifications.NewService(notificationsRepo, nil, logg)
	}
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	commissionsSvc, err := commissions.NewService(commissionsRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create commissions service", err)
		os.Exit(1)
	}

	salesSvc, err := sales.NewService(
		salesRepo, dbClient, inventoryClient, scorer,
		productsRepo, commissionsSvc, notificationsSvc,
		settlementMetrics, logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create sales service", err)
		os.Exit(1)
	}

	requestsSvc, err := payrequests.NewService(
		requestsRepo, dbClient, commissionsSvc, accountsRepo,
		gcsClient, notificationsSvc, settlementMetrics, logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create payment request service", err)
		os.Exit(1)
	}

	batchesSvc, err := paybatches.NewService(
		batchesRepo, dbClient, commissionsRepo, accountsRepo,
		gcsClient, notificationsSvc, settlementMetrics, logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create payment batch service", err)
		os.Exit(1)
	}

	router := routes.New(routes.Deps{
		Config:           *cfg,
		Logger:           logg,
		IdempotencyStore: redisClient,
		Gatherer:         registry,

		Health:          controllers.NewHealthController(dbClient, redisClient, gcsClient, logg),
		Sales:           controllers.NewSalesController(salesSvc, logg),
		PaymentRequests: controllers.NewPaymentRequestsController(requestsSvc, logg),
		PaymentBatches:  controllers.NewPaymentBatchesController(batchesSvc, logg),
		Commissions:     controllers.NewCommissionsController(commissionsSvc, logg),
		Notifications:   controllers.NewNotificationsController(notificationsSvc, logg),
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "api server starting")
		errs <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "server exited", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
