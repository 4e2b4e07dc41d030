package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/curiomarket/curio-backend/internal/audit"
	"github.com/curiomarket/curio-backend/internal/cart"
	"github.com/curiomarket/curio-backend/internal/cron"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/internal/verification"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/email"
	"github.com/curiomarket/curio-backend/pkg/instance"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	"github.com/curiomarket/curio-backend/pkg/migrate"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/redis"
	"github.com/curiomarket/curio-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildJobs(context.Background(), cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    cron.RedisLocks(redisClient, cfg.Cron.LockTTL),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()
	userRepo := users.NewRepository(gdb)
	outboxRepo := outbox.NewRepository(gdb)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Users:                userRepo,
		Stripe:               stripeClient,
		Locker:               redisClient,
		Outbox:               outboxSvc,
		TransactionRunner:    dbClient,
		Metrics:              metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Logger:               logg,
		PriceID:              stripeClient.PriceID(),
		LockTTL:              cfg.Stripe.LockTTL,
		TrustLocalSellerRole: cfg.FeatureFlags.TrustLocalSellerRole,
	})
	if err != nil {
		return nil, err
	}

	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:              cart.NewRepository(gdb),
		Listings:          listings.NewRepository(gdb),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}

	mailer, err := email.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		return nil, err
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	verificationSvc, err := verification.NewService(verification.ServiceParams{
		Repo:              verification.NewRepository(gdb),
		Users:             userRepo,
		Sellers:           sellers.NewRepository(gdb),
		Audit:             audit.NewRepository(gdb),
		Outbox:            outboxSvc,
		Limiter:           redisClient,
		Mailer:            mailer,
		Renderer:          renderer,
		TransactionRunner: dbClient,
		Logger:            logg,
		Config:            cfg.Verification,
	})
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:     logg,
		Users:      userRepo,
		Reconciler: subscriptionSvc,
		BatchSize:  cfg.Cron.ReconcileBatch,
		Lookback:   cfg.Cron.ReconcileLookback,
	})
	if err != nil {
		return nil, err
	}
	verificationCleanup, err := cron.NewVerificationCleanupJob(logg, verificationSvc)
	if err != nil {
		return nil, err
	}
	cartCleanup, err := cron.NewCartCleanupJob(logg, cartSvc)
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(
		cron.WithSchedule(reconcile, cfg.Cron.ReconcileSchedule),
		cron.WithSchedule(verificationCleanup, cfg.Cron.VerificationCleanup),
		cron.WithSchedule(cartCleanup, cfg.Cron.CartCleanup),
		cron.WithSchedule(outboxRetention, cfg.Cron.OutboxRetention),
	), nil
}
