package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wavecrate/presetstore/internal/auth"
	"github.com/wavecrate/presetstore/internal/cart"
	"github.com/wavecrate/presetstore/internal/catalog"
	"github.com/wavecrate/presetstore/internal/checkout"
	"github.com/wavecrate/presetstore/internal/config"
	"github.com/wavecrate/presetstore/internal/entitlement"
	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/httpserver"
	"github.com/wavecrate/presetstore/internal/logging"
	mwauth "github.com/wavecrate/presetstore/internal/middleware/auth"
	"github.com/wavecrate/presetstore/internal/models"
	"github.com/wavecrate/presetstore/internal/orders"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
	"github.com/wavecrate/presetstore/internal/search"
	"github.com/wavecrate/presetstore/internal/webhook"
	"github.com/wavecrate/presetstore/pkg/db"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := database.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers)
	}

	var indexer search.Indexer = search.Noop{}
	if cfg.ESURL != "" {
		esIndexer, err := search.NewESIndexer(cfg.ESURL, cfg.ESUser, cfg.ESPassword, cfg.ESIndex)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		indexer = esIndexer
	}

	catalogRepo := &catalog.GormRepo{DB: database}
	catalogSvc := &catalog.Service{Repo: catalogRepo, Indexer: indexer, Publisher: publisher}

	cartRepo := &cart.GormRepo{DB: database}
	cartSvc := &cart.Service{Repo: cartRepo}

	checkoutSvc := &checkout.Service{
		Carts:      cartSvc,
		Payments:   stripe.NewClient(cfg.StripeSecretKey),
		Currency:   "usd",
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	}

	webhookSvc := &webhook.Service{
		DB:            database,
		Carts:         cartSvc,
		Publisher:     publisher,
		WebhookSecret: cfg.StripeWebhookSecret,
	}

	entitlementSvc := &entitlement.Service{DB: database, Catalog: catalogRepo}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(logging.Middleware(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:      &auth.HTTP{Svc: &auth.Service{DB: database, JWTSecret: cfg.JWTSecret}},
		Catalog:   &catalog.HTTP{Svc: catalogSvc},
		Cart:      &cart.HTTP{Svc: cartSvc, Publisher: publisher},
		Checkout:  &checkout.HTTP{Svc: checkoutSvc},
		Webhook:   &webhook.HTTP{Svc: webhookSvc},
		Downloads: &entitlement.HTTP{Svc: entitlementSvc, DownloadBaseURL: cfg.DownloadBaseURL},
		Orders:    &orders.HTTP{Repo: &orders.GormRepo{DB: database}},
		AuthMW:    &mwauth.Middleware{JWTSecret: cfg.JWTSecret},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := publisher.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
