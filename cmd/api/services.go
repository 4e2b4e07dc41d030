package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curiomarket/curio-backend/api/controllers"
	"github.com/curiomarket/curio-backend/api/routes"
	"github.com/curiomarket/curio-backend/internal/admin"
	"github.com/curiomarket/curio-backend/internal/audit"
	"github.com/curiomarket/curio-backend/internal/auth"
	"github.com/curiomarket/curio-backend/internal/cart"
	"github.com/curiomarket/curio-backend/internal/checkout"
	"github.com/curiomarket/curio-backend/internal/exports"
	"github.com/curiomarket/curio-backend/internal/favorites"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/internal/messages"
	"github.com/curiomarket/curio-backend/internal/orders"
	"github.com/curiomarket/curio-backend/internal/promotions"
	"github.com/curiomarket/curio-backend/internal/reviews"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/internal/verification"
	stripewebhook "github.com/curiomarket/curio-backend/internal/webhooks/stripe"
	"github.com/curiomarket/curio-backend/pkg/auth/oidc"
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/email"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/redis"
	"github.com/curiomarket/curio-backend/pkg/storage/gcs"
	"github.com/curiomarket/curio-backend/pkg/stripe"
)

// buildDependencies constructs every repository and service the router
// needs. The returned func releases clients opened here.
func buildDependencies(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	registry *prometheus.Registry,
) (routes.Dependencies, func(), error) {
	deps := routes.Dependencies{
		Metrics: registry,
		Redis:   redisClient,
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
	}
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (routes.Dependencies, func(), error) {
		closeAll()
		return routes.Dependencies{}, func() {}, fmt.Errorf("%s: %w", what, err)
	}

	gdb := dbClient.DB()
	billingMetrics := metrics.NewBillingMetrics(registry)

	userRepo := users.NewRepository(gdb)
	sellerRepo := sellers.NewRepository(gdb)
	listingRepo := listings.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)
	promotionRepo := promotions.NewRepository(gdb)
	auditRepo := audit.NewRepository(gdb)
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	userSvc, err := users.NewService(users.ServiceParams{
		Repo:              userRepo,
		Audit:             auditRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		return fail("users service", err)
	}
	deps.Users = userSvc

	sessions, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		return fail("session manager", err)
	}
	deps.Sessions = sessions

	provider, err := oidc.NewProvider(ctx, cfg.OIDC)
	if err != nil {
		return fail("oidc provider", err)
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		Authenticator: provider,
		Users:         userSvc,
		Sessions:      sessions,
		Session:       cfg.Session,
		Logger:        logg,
	})
	if err != nil {
		return fail("auth service", err)
	}
	deps.Auth = authSvc

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fail("stripe client", err)
	}
	deps.StripeSigningSecret = stripeClient.SigningSecret()

	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Users:                userRepo,
		Stripe:               stripeClient,
		Locker:               redisClient,
		Outbox:               outboxSvc,
		TransactionRunner:    dbClient,
		Metrics:              billingMetrics,
		Logger:               logg,
		PriceID:              stripeClient.PriceID(),
		LockTTL:              cfg.Stripe.LockTTL,
		TrustLocalSellerRole: cfg.FeatureFlags.TrustLocalSellerRole,
	})
	if err != nil {
		return fail("subscriptions service", err)
	}
	deps.Subscriptions = subscriptionSvc

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookEventTTL, "stripe-"+stripeClient.Environment())
	if err != nil {
		return fail("stripe idempotency guard", err)
	}
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Subscriptions: subscriptionSvc,
		Users:         userRepo,
		Guard:         guard,
		Events:        stripewebhook.NewEventRepository(gdb),
		Metrics:       billingMetrics,
		Logger:        logg,
	})
	if err != nil {
		return fail("stripe webhook service", err)
	}
	deps.StripeWebhook = webhookSvc

	sellerSvc, err := sellers.NewService(sellers.ServiceParams{
		Repo:              sellerRepo,
		Users:             userRepo,
		Subscriptions:     subscriptionSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("sellers service", err)
	}
	deps.Sellers = sellerSvc

	listingSvc, err := listings.NewService(listings.ServiceParams{
		Repo:              listingRepo,
		Sellers:           sellerRepo,
		Access:            subscriptionSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
		Currency:          cfg.Marketplace.Currency,
	})
	if err != nil {
		return fail("listings service", err)
	}
	deps.Listings = listingSvc

	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:              cartRepo,
		Listings:          listingRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("cart service", err)
	}
	deps.Cart = cartSvc

	promotionSvc, err := promotions.NewService(promotions.ServiceParams{
		Repo:              promotionRepo,
		Sellers:           sellerRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("promotions service", err)
	}
	deps.Promotions = promotionSvc

	feeRate, err := cfg.Marketplace.FeeRate()
	if err != nil {
		return fail("platform fee", err)
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Carts:             cartRepo,
		Listings:          listingRepo,
		Orders:            orderRepo,
		Promotions:        promotionSvc,
		Outbox:            outboxSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
		FeeRate:           feeRate,
		Currency:          cfg.Marketplace.Currency,
	})
	if err != nil {
		return fail("checkout service", err)
	}
	deps.Checkout = checkoutSvc

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:              orderRepo,
		Sellers:           sellerRepo,
		Inventory:         orders.NewInventoryReleaser(listingRepo, logg),
		Outbox:            outboxSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("orders service", err)
	}
	deps.Orders = orderSvc

	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		Repo:              reviews.NewRepository(gdb),
		Orders:            orderRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("reviews service", err)
	}
	deps.Reviews = reviewSvc

	favoriteSvc, err := favorites.NewService(favorites.NewRepository(gdb), listingRepo)
	if err != nil {
		return fail("favorites service", err)
	}
	deps.Favorites = favoriteSvc

	messageSvc, err := messages.NewService(messages.ServiceParams{
		Repo:              messages.NewRepository(gdb),
		Sellers:           sellerRepo,
		Listings:          listingRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return fail("messages service", err)
	}
	deps.Messages = messageSvc

	mailer, err := email.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		return fail("email client", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return fail("email templates", err)
	}
	verificationSvc, err := verification.NewService(verification.ServiceParams{
		Repo:              verification.NewRepository(gdb),
		Users:             userRepo,
		Sellers:           sellerRepo,
		Audit:             auditRepo,
		Outbox:            outboxSvc,
		Limiter:           redisClient,
		Mailer:            mailer,
		Renderer:          renderer,
		TransactionRunner: dbClient,
		Logger:            logg,
		Config:            cfg.Verification,
		ExposeDevCodes:    cfg.App.IsDev(),
	})
	if err != nil {
		return fail("verification service", err)
	}
	deps.Verification = verificationSvc

	adminSvc, err := admin.NewService(admin.ServiceParams{
		Users:        userSvc,
		Orders:       orderRepo,
		Verification: verificationSvc,
		Logger:       logg,
	})
	if err != nil {
		return fail("admin service", err)
	}
	deps.Admin = adminSvc

	exportSvc, err := exports.NewService(exports.ServiceParams{
		Listings:  listingRepo,
		Orders:    orderRepo,
		PublicURL: cfg.App.PublicURL,
		Logger:    logg,
	})
	if err != nil {
		return fail("exports service", err)
	}
	deps.Exports = exportSvc

	if cfg.GCS.BucketName == "" {
		logg.Warn(ctx, "gcs bucket not configured; media uploads disabled")
		return deps, closeAll, nil
	}
	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return fail("gcs client", err)
	}
	closers = append(closers, func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	})
	deps.Pingers["gcs"] = gcsClient
	media.SetServedBucket(cfg.GCS.BucketName)

	mediaSvc, err := media.NewService(media.ServiceParams{
		Store:     gcsClient,
		Logger:    logg,
		UploadTTL: cfg.GCS.UploadURLExpiry,
		MaxBytes:  int64(cfg.GCS.MaxUploadMB) << 20,
	})
	if err != nil {
		return fail("media service", err)
	}
	deps.Media = mediaSvc

	return deps, closeAll, nil
}
