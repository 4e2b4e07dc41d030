package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/curiomarket/curio-backend/api/controllers"
	admincontrollers "github.com/curiomarket/curio-backend/api/controllers/admin"
	cartcontrollers "github.com/curiomarket/curio-backend/api/controllers/cart"
	ordercontrollers "github.com/curiomarket/curio-backend/api/controllers/orders"
	sellercontrollers "github.com/curiomarket/curio-backend/api/controllers/seller"
	subscriptioncontrollers "github.com/curiomarket/curio-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/curiomarket/curio-backend/api/controllers/webhooks"
	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/internal/admin"
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
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/redis"
)

// StripeProcessor handles verified Stripe events.
type StripeProcessor interface {
	Process(ctx context.Context, event *stripe.Event) (string, error)
}

// Dependencies is everything the HTTP surface needs. Pingers are checked by
// the readiness probe; a nil Metrics gatherer falls back to the default
// registry.
type Dependencies struct {
	Pingers  map[string]controllers.Pinger
	Metrics  prometheus.Gatherer
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	Auth          auth.Service
	Users         users.Service
	Admin         admin.Service
	Sellers       sellers.Service
	Listings      listings.Service
	Media         media.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Promotions    promotions.Service
	Reviews       reviews.Service
	Favorites     favorites.Service
	Messages      messages.Service
	Verification  verification.Service
	Subscriptions subscriptions.Service
	Exports       exports.Service

	StripeWebhook       StripeProcessor
	StripeSigningSecret string
}

// NewRouter builds the chi router for the whole API.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))

	var accounts middleware.AccountLookup
	if deps.Users != nil {
		accounts = deps.Users
	}
	var limiter middleware.RateLimitStore
	var idempotencyStore redis.IdempotencyStore
	if deps.Redis != nil {
		limiter = deps.Redis
		idempotencyStore = deps.Redis
	}

	requireAuth := middleware.Auth(cfg.Session, deps.Sessions, accounts, logg)
	optionalAuth := middleware.OptionalAuth(cfg.Session, deps.Sessions, accounts, logg)
	authLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("auth", cfg.AuthRateLimit.Window, cfg.AuthRateLimit.IPLimit),
		limiter,
		logg,
	)
	idempotent := middleware.Idempotency(idempotencyStore, middleware.IdempotencyTTL, logg)
	cookieSecure := cfg.Session.CookieSecure

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	r.Handle("/metrics", metricsHandler(deps.Metrics))

	objects := controllers.ObjectServe(deps.Media, logg)
	r.Get("/objects/*", objects)
	r.Head("/objects/*", objects)

	r.Route("/api", func(r chi.Router) {
		r.With(authLimit).Get("/login", controllers.AuthLogin(deps.Auth, cfg.Session, logg))
		r.With(authLimit).Get("/callback", controllers.AuthCallback(deps.Auth, deps.Cart, cfg.Session, logg))
		r.Get("/logout", controllers.AuthLogout(deps.Auth, cfg.Session, cfg.App.PublicURL, logg))
		r.With(authLimit).Post("/auth/token", controllers.AuthToken(deps.Auth, deps.Cart, logg))
		r.With(authLimit).Post("/auth/refresh", controllers.AuthRefresh(deps.Auth, cfg.Session, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeSigningSecret, logg))

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/listings", controllers.ListingsList(deps.Listings, logg))
			r.Get("/listings/{listingId}", controllers.ListingGet(deps.Listings, logg))
			r.Get("/listings/{listingId}/reviews", controllers.ListingReviews(deps.Reviews, logg))
			r.Get("/sellers/{sellerId}/reviews", controllers.SellerReviews(deps.Reviews, logg))
			r.Get("/shops/{slug}", controllers.ShopGet(deps.Sellers, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Use(middleware.CartSession())
				r.Get("/", cartcontrollers.CartFetch(deps.Cart, cookieSecure, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Cart, cookieSecure, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, cookieSecure, logg))
				r.Patch("/items/{listingId}", cartcontrollers.CartUpdateItem(deps.Cart, cookieSecure, logg))
				r.Delete("/items/{listingId}", cartcontrollers.CartRemoveItem(deps.Cart, cookieSecure, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/user", controllers.AuthUser(deps.Users, logg))
			r.Get("/profile", controllers.AuthUser(deps.Users, logg))
			r.Patch("/profile", controllers.ProfileUpdate(deps.Users, logg))

			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			r.Post("/promotions/quote", controllers.PromotionQuote(deps.Promotions, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.BuyerOrdersList(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.OrderDetail(deps.Orders, logg))
				r.With(idempotent).Post("/{orderId}/cancel", ordercontrollers.OrderCancel(deps.Orders, logg))
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", controllers.FavoritesList(deps.Favorites, logg))
				r.Get("/ids", controllers.FavoritesIDs(deps.Favorites, logg))
				r.Put("/{listingId}", controllers.FavoritesAdd(deps.Favorites, logg))
				r.Delete("/{listingId}", controllers.FavoritesRemove(deps.Favorites, logg))
			})

			r.Route("/messages/threads", func(r chi.Router) {
				r.Get("/", controllers.MessageThreadsList(deps.Messages, logg))
				r.Post("/", controllers.MessageThreadStart(deps.Messages, logg))
				r.Get("/{threadId}/messages", controllers.MessagesList(deps.Messages, logg))
				r.Post("/{threadId}/messages", controllers.MessageSend(deps.Messages, logg))
				r.Post("/{threadId}/read", controllers.MessagesMarkRead(deps.Messages, logg))
			})

			r.Post("/reviews", controllers.ReviewCreate(deps.Reviews, logg))
			r.Post("/objects/upload", controllers.MediaPresign(deps.Media, logg))
			r.Post("/objects/finalize", controllers.MediaFinalize(deps.Media, logg))

			r.Route("/verification", func(r chi.Router) {
				r.Post("/codes", controllers.VerificationIssueCode(deps.Verification, logg))
				r.Post("/verify", controllers.VerificationVerifyCode(deps.Verification, logg))
				r.Post("/seller", controllers.VerificationSubmitSeller(deps.Verification, logg))
				r.Get("/audit", controllers.VerificationAuditLog(deps.Verification, logg))
			})

			r.Route("/subscription", func(r chi.Router) {
				r.Get("/", subscriptioncontrollers.SubscriptionStatus(deps.Subscriptions, logg))
				r.With(idempotent).Post("/", subscriptioncontrollers.SubscriptionCreate(deps.Subscriptions, logg))
				r.With(idempotent).Post("/activate", subscriptioncontrollers.SubscriptionActivate(deps.Subscriptions, logg))
				r.With(idempotent).Post("/cancel", subscriptioncontrollers.SubscriptionCancel(deps.Subscriptions, logg))
			})

			r.Route("/seller", func(r chi.Router) {
				r.Post("/onboard", sellercontrollers.Onboard(deps.Sellers, logg))
				r.Get("/profile", sellercontrollers.Profile(deps.Sellers, logg))
				r.Patch("/profile", sellercontrollers.ProfileUpdate(deps.Sellers, logg))
				r.Get("/dashboard", sellercontrollers.Dashboard(deps.Sellers, logg))

				r.Get("/listings", sellercontrollers.ListingsMine(deps.Listings, logg))
				r.Post("/listings", sellercontrollers.ListingCreate(deps.Listings, logg))
				r.Patch("/listings/{listingId}", sellercontrollers.ListingUpdate(deps.Listings, logg))
				r.Delete("/listings/{listingId}", sellercontrollers.ListingDelete(deps.Listings, logg))
				r.Post("/listings/{listingId}/publish", sellercontrollers.ListingPublish(deps.Listings, logg))
				r.Post("/listings/{listingId}/unpublish", sellercontrollers.ListingUnpublish(deps.Listings, logg))

				r.Get("/orders", ordercontrollers.SellerOrdersList(deps.Orders, logg))
				r.Patch("/orders/{orderId}/status", ordercontrollers.OrderUpdateStatus(deps.Orders, logg))

				r.Get("/promotions", sellercontrollers.PromotionsList(deps.Promotions, logg))
				r.Post("/promotions", sellercontrollers.PromotionCreate(deps.Promotions, logg))
				r.Patch("/promotions/{promotionId}", sellercontrollers.PromotionUpdate(deps.Promotions, logg))
				r.Delete("/promotions/{promotionId}", sellercontrollers.PromotionDelete(deps.Promotions, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

				r.Get("/users", admincontrollers.UsersList(deps.Users, logg))
				r.Post("/users/{userId}/ban", admincontrollers.UserBan(deps.Admin, logg))
				r.Post("/users/{userId}/suspend", admincontrollers.UserSuspend(deps.Admin, logg))
				r.Post("/users/{userId}/reinstate", admincontrollers.UserReinstate(deps.Admin, logg))
				r.Patch("/users/{userId}/role", admincontrollers.UserSetRole(deps.Admin, logg))

				r.Get("/listings", admincontrollers.ListingsList(deps.Listings, logg))
				r.Post("/listings/{listingId}/suspend", admincontrollers.ListingSuspend(deps.Listings, logg))
				r.Post("/listings/{listingId}/reinstate", admincontrollers.ListingReinstate(deps.Listings, logg))
				r.Post("/reviews/{reviewId}/hide", admincontrollers.ReviewHide(deps.Reviews, logg))

				r.Get("/verification", admincontrollers.VerificationQueue(deps.Verification, logg))
				r.Post("/verification/{queueId}/approve", admincontrollers.VerificationApprove(deps.Verification, logg))
				r.Post("/verification/{queueId}/reject", admincontrollers.VerificationReject(deps.Verification, logg))

				r.Get("/stats", admincontrollers.Stats(deps.Admin, logg))
				r.Get("/exports/{name}", admincontrollers.Export(deps.Exports, logg))
			})
		})
	})

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
