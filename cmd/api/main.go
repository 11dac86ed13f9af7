package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/maisonceleste/api/internal/handlers"
	"github.com/maisonceleste/api/internal/payments"
	"github.com/maisonceleste/api/internal/platform/auth"
	"github.com/maisonceleste/api/internal/platform/config"
	"github.com/maisonceleste/api/internal/platform/metrics"
	"github.com/maisonceleste/api/internal/platform/notify"
	"github.com/maisonceleste/api/internal/platform/observability"
	"github.com/maisonceleste/api/internal/platform/secrets"
	"github.com/maisonceleste/api/internal/repositories/mysql"
	"github.com/maisonceleste/api/internal/services"
)

func main() {
	ctx := context.Background()

	bootLogger, err := observability.NewLogger(os.Getenv("SHOP_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(bootLogger.Named("secrets")))
	if err != nil {
		bootLogger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			bootLogger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			bootLogger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	baseLogger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		bootLogger.Fatal("failed to initialise logger", zap.Error(err))
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	dbProvider, err := mysql.NewProvider(mysql.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise database", zap.Error(err))
	}
	defer func() {
		if err := dbProvider.Close(); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	orderRepo, err := mysql.NewOrderRepository(dbProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	basketRepo, err := mysql.NewBasketRepository(dbProvider)
	if err != nil {
		logger.Fatal("failed to initialise basket repository", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: observability.EventLogger(logger.Named("stripe")),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment provider", zap.Error(err))
	}
	eventVerifier, err := payments.NewEventVerifier(cfg.PSP.StripeWebhookSecret)
	if err != nil {
		logger.Fatal("failed to initialise webhook verifier", zap.Error(err))
	}

	notifier, pubsubClient, err := newNotifier(ctx, cfg.Notifications, logger)
	if err != nil {
		logger.Fatal("failed to initialise notifier", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	delivery := services.DeliveryPolicy{
		FreeThresholdCents: cfg.Delivery.FreeThresholdCents,
		FeeCents:           cfg.Delivery.FeeCents,
	}

	intentService, err := services.NewPaymentIntentService(services.PaymentIntentServiceDeps{
		Baskets:  basketRepo,
		Provider: stripeProvider,
		Delivery: delivery,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("payments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment intent service", zap.Error(err))
	}
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Baskets:  basketRepo,
		Orders:   orderRepo,
		Provider: stripeProvider,
		Notifier: notifier,
		Delivery: delivery,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}
	reconcileService, err := services.NewReconcileService(services.ReconcileServiceDeps{
		Orders:   orderRepo,
		Notifier: notifier,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("reconcile")),
	})
	if err != nil {
		logger.Fatal("failed to initialise reconcile service", zap.Error(err))
	}
	reversalService, err := services.NewReversalService(services.ReversalServiceDeps{
		Orders:   orderRepo,
		Provider: stripeProvider,
		Notifier: notifier,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("reversal")),
	})
	if err != nil {
		logger.Fatal("failed to initialise reversal service", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	authMiddleware := auth.Middleware(verifier)

	paymentHandlers := handlers.NewPaymentHandlers(intentService)
	orderHandlers := handlers.NewOrderHandlers(checkoutService, reversalService)
	webhookHandlers := handlers.NewWebhookHandlers(eventVerifier, reconcileService)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		metrics.Middleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(dbProvider)),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithPaymentRoutes(paymentHandlers.Routes, authMiddleware),
		handlers.WithOrderRoutes(orderHandlers.Routes, authMiddleware),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newNotifier builds the Pub/Sub order event publisher when notifications are
// configured. Both project and topic empty means publishing is disabled.
func newNotifier(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (services.Notifier, *pubsub.Client, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	topicID := strings.TrimSpace(cfg.Topic)
	if project == "" && topicID == "" {
		logger.Info("order event publishing disabled")
		return nil, nil, nil
	}
	if project == "" || topicID == "" {
		return nil, nil, errors.New("notifications require both project id and topic")
	}

	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	notifier, err := notify.NewPubSubNotifier(client.Topic(topicID))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return notifier, client, nil
}
