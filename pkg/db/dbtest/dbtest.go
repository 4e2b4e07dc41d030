// Package dbtest opens an isolated in-memory sqlite database carrying the
// marketplace schema, for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/db"
)

// schema mirrors pkg/migrate/migrations in sqlite types. Unique and partial
// indexes are kept since services rely on them.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		oidc_subject TEXT NOT NULL,
		email TEXT,
		first_name TEXT,
		last_name TEXT,
		profile_image_url TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'buyer',
		account_status TEXT NOT NULL DEFAULT 'active',
		email_verified BOOLEAN NOT NULL DEFAULT 0,
		phone_verified BOOLEAN NOT NULL DEFAULT 0,
		identity_verified BOOLEAN NOT NULL DEFAULT 0,
		address_verified BOOLEAN NOT NULL DEFAULT 0,
		verification_level INTEGER NOT NULL DEFAULT 0,
		stripe_customer_id TEXT,
		stripe_subscription_id TEXT,
		subscription_state TEXT NOT NULL DEFAULT 'none',
		subscription_updated_at DATETIME,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_users_oidc_subject ON users (oidc_subject)`,
	`CREATE UNIQUE INDEX ux_users_email ON users (email) WHERE email IS NOT NULL`,
	`CREATE TABLE sellers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		shop_name TEXT NOT NULL,
		shop_slug TEXT NOT NULL,
		description TEXT,
		logo_url TEXT,
		banner_url TEXT,
		business_type TEXT,
		business_name TEXT,
		tax_id TEXT,
		business_license TEXT,
		business_address TEXT,
		business_phone TEXT,
		verification_status TEXT NOT NULL DEFAULT 'unsubmitted',
		risk_score INTEGER NOT NULL DEFAULT 0,
		stripe_connect_account_id TEXT,
		payout_schedule TEXT NOT NULL DEFAULT 'weekly',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_sellers_user ON sellers (user_id)`,
	`CREATE UNIQUE INDEX ux_sellers_shop_slug ON sellers (shop_slug)`,
	`CREATE TABLE listings (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		compare_at_price NUMERIC,
		currency TEXT NOT NULL DEFAULT 'usd',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		state TEXT NOT NULL DEFAULT 'draft',
		category_ids TEXT NOT NULL DEFAULT '{}',
		images TEXT NOT NULL DEFAULT '{}',
		condition TEXT NOT NULL DEFAULT 'new',
		brand TEXT,
		sku TEXT,
		suspended_reason TEXT,
		published_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		session_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_carts_active_user ON carts (user_id) WHERE status = 'active' AND user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX ux_carts_active_session ON carts (session_id) WHERE status = 'active' AND session_id IS NOT NULL`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_cart_items_cart_listing ON cart_items (cart_id, listing_id)`,
	`CREATE TABLE promotions (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		code TEXT NOT NULL,
		description TEXT,
		discount_type TEXT NOT NULL,
		discount_value NUMERIC NOT NULL,
		min_order_amount NUMERIC,
		max_uses INTEGER,
		current_uses INTEGER NOT NULL DEFAULT 0,
		starts_at DATETIME,
		ends_at DATETIME,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (max_uses IS NULL OR current_uses <= max_uses)
	)`,
	`CREATE UNIQUE INDEX ux_promotions_seller_code ON promotions (seller_id, upper(code))`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		checkout_group_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		subtotal NUMERIC NOT NULL,
		discount NUMERIC NOT NULL DEFAULT 0,
		platform_fee NUMERIC NOT NULL DEFAULT 0,
		total NUMERIC NOT NULL,
		currency TEXT NOT NULL DEFAULT 'usd',
		promotion_id TEXT,
		shipping_address TEXT NOT NULL,
		tracking_number TEXT,
		paid_at DATETIME,
		shipped_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		title TEXT NOT NULL,
		unit_price NUMERIC NOT NULL,
		quantity INTEGER NOT NULL,
		line_total NUMERIC NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE promotion_redemptions (
		id TEXT PRIMARY KEY,
		promotion_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_promotion_redemptions_order ON promotion_redemptions (promotion_id, order_id)`,
	`CREATE TABLE verification_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		target TEXT,
		expires_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		verified_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_verification_requests_pending ON verification_requests (user_id, type) WHERE status = 'pending'`,
	`CREATE TABLE seller_review_queue (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		priority INTEGER NOT NULL,
		risk_factors TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT,
		reviewed_at DATETIME,
		notes TEXT,
		submission BLOB NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE verification_audit_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		verification_type TEXT,
		details BLOB,
		created_at DATETIME
	)`,
	`CREATE TABLE reviews (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		title TEXT,
		body TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'visible',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_reviews_order_listing ON reviews (buyer_id, order_id, listing_id)`,
	`CREATE TABLE favorites (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_favorites_user_listing ON favorites (user_id, listing_id)`,
	`CREATE TABLE message_threads (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		seller_user_id TEXT NOT NULL,
		listing_id TEXT,
		last_message_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_message_threads_triple ON message_threads (buyer_id, seller_user_id, COALESCE(listing_id, ''))`,
	`CREATE TABLE messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE subscription_events (
		id TEXT PRIMARY KEY,
		stripe_event_id TEXT NOT NULL,
		type TEXT NOT NULL,
		user_id TEXT,
		processed_at DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_subscription_events_stripe_event ON subscription_events (stripe_event_id)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		published_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:curio_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client for services that take a TxRunner.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t))
}
