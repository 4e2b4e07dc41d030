package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Redis         RedisConfig
	Session       SessionConfig
	OIDC          OIDCConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Marketplace   MarketplaceConfig
	Verification  VerificationConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Marketplace.FeeRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CURIO_APP_ENV" required:"true"`
	Port         string `envconfig:"CURIO_APP_PORT" default:"8080"`
	PublicURL    string `envconfig:"CURIO_PUBLIC_URL"`
	LogLevel     string `envconfig:"CURIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CURIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CURIO_SERVICE_KIND" default:"api"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"CURIO_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"CURIO_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"CURIO_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"CURIO_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	AllowedOrigins  []string      `envconfig:"CURIO_CORS_ALLOWED_ORIGINS"`
}

type DBConfig struct {
	DSN string `envconfig:"DATABASE_URL"`

	LegacyHost     string `envconfig:"CURIO_DB_HOST"`
	LegacyPort     int    `envconfig:"CURIO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CURIO_DB_USER"`
	LegacyPassword string `envconfig:"CURIO_DB_PASSWORD"`
	LegacyName     string `envconfig:"CURIO_DB_NAME"`
	LegacySSLMode  string `envconfig:"CURIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CURIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CURIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CURIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CURIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CURIO_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"CURIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CURIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CURIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CURIO_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CURIO_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// SessionConfig drives both the signed access token and the session cookie.
type SessionConfig struct {
	Secret       string        `envconfig:"SESSION_SECRET" required:"true"`
	Issuer       string        `envconfig:"CURIO_SESSION_ISSUER" default:"curio-market"`
	AccessTTL    time.Duration `envconfig:"CURIO_SESSION_ACCESS_TTL" default:"1h"`
	RefreshTTL   time.Duration `envconfig:"CURIO_SESSION_REFRESH_TTL" default:"720h"`
	CookieName   string        `envconfig:"CURIO_SESSION_COOKIE_NAME" default:"curio.sid"`
	CookieSecure bool          `envconfig:"CURIO_SESSION_COOKIE_SECURE" default:"true"`
}

type OIDCConfig struct {
	IssuerURL    string `envconfig:"ISSUER_URL" default:"https://replit.com/oidc"`
	ClientID     string `envconfig:"REPL_ID"`
	ClientSecret string `envconfig:"CURIO_OIDC_CLIENT_SECRET"`
	Domains      string `envconfig:"REPLIT_DOMAINS"`
	CallbackPath string `envconfig:"CURIO_OIDC_CALLBACK_PATH" default:"/api/callback"`
}

// AllowedDomains returns the hosts the OIDC callback may be served from.
func (o OIDCConfig) AllowedDomains() []string {
	var out []string
	for _, d := range strings.Split(o.Domains, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

type AuthRateLimitConfig struct {
	Window  time.Duration `envconfig:"CURIO_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"CURIO_AUTH_RATE_LIMIT_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CURIO_AUTO_MIGRATE" default:"false"`
	// TrustLocalSellerRole keeps an existing seller role authoritative when the
	// processor disagrees or is unreachable.
	TrustLocalSellerRole bool `envconfig:"CURIO_TRUST_LOCAL_SELLER_ROLE" default:"true"`
}

type MarketplaceConfig struct {
	PlatformFeePercent string `envconfig:"PLATFORM_FEE_PERCENT" default:"10"`
	Currency           string `envconfig:"CURIO_CURRENCY" default:"usd"`
}

// FeeRate returns the platform fee as a fraction in [0,1].
func (m MarketplaceConfig) FeeRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(m.PlatformFeePercent)
	if raw == "" {
		return decimal.Zero, nil
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvPlatformFeePercent, raw, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", EnvPlatformFeePercent)
	}
	return pct.Div(decimal.NewFromInt(100)), nil
}

type VerificationConfig struct {
	CodeTTL     time.Duration `envconfig:"CURIO_VERIFICATION_CODE_TTL" default:"15m"`
	MaxAttempts int           `envconfig:"CURIO_VERIFICATION_MAX_ATTEMPTS" default:"5"`
	IssueLimit  int           `envconfig:"CURIO_VERIFICATION_ISSUE_LIMIT" default:"5"`
	IssueWindow time.Duration `envconfig:"CURIO_VERIFICATION_ISSUE_WINDOW" default:"15m"`
	ArgonTime   int           `envconfig:"CURIO_VERIFICATION_ARGON_TIME" default:"1"`
	ArgonMemKB  int           `envconfig:"CURIO_VERIFICATION_ARGON_MEMORY_KB" default:"19456"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CURIO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CURIO_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CURIO_GCP_CREDENTIALS_JSON"`
}

type GCSConfig struct {
	BucketName      string        `envconfig:"CURIO_GCS_BUCKET_NAME"`
	UploadURLExpiry time.Duration `envconfig:"CURIO_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	MaxUploadMB     int           `envconfig:"CURIO_GCS_MAX_UPLOAD_MB" default:"10"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"CURIO_PUBSUB_NOTIFICATION_TOPIC" default:"curio-notifications"`
	NotificationSubscription string `envconfig:"CURIO_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"curio-notifications-worker"`
}

type StripeConfig struct {
	SecretKey           string        `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret       string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	Env                 string        `envconfig:"CURIO_STRIPE_ENV" default:"test"`
	SubscriptionPriceID string        `envconfig:"CURIO_STRIPE_SUBSCRIPTION_PRICE_ID"`
	WebhookEventTTL     time.Duration `envconfig:"CURIO_STRIPE_WEBHOOK_EVENT_TTL" default:"72h"`
	LockTTL             time.Duration `envconfig:"CURIO_STRIPE_SUBSCRIPTION_LOCK_TTL" default:"30s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey    string `envconfig:"SENDGRID_API_KEY"`
	FromEmail string `envconfig:"CURIO_SENDGRID_FROM_EMAIL" default:"no-reply@curio.market"`
	FromName  string `envconfig:"CURIO_SENDGRID_FROM_NAME" default:"Curio Market"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CURIO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CURIO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CURIO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CURIO_OUTBOX_RETENTION" default:"336h"`
}

type CronConfig struct {
	LockTTL             time.Duration `envconfig:"CURIO_CRON_LOCK_TTL" default:"25m"`
	ReconcileSchedule   string        `envconfig:"CURIO_CRON_RECONCILE_SCHEDULE" default:"@every 30m"`
	ReconcileBatch      int           `envconfig:"CURIO_CRON_RECONCILE_BATCH" default:"250"`
	ReconcileLookback   time.Duration `envconfig:"CURIO_CRON_RECONCILE_LOOKBACK" default:"168h"`
	VerificationCleanup string        `envconfig:"CURIO_CRON_VERIFICATION_SCHEDULE" default:"@hourly"`
	CartCleanup         string        `envconfig:"CURIO_CRON_CART_SCHEDULE" default:"@daily"`
	OutboxRetention     string        `envconfig:"CURIO_CRON_OUTBOX_SCHEDULE" default:"@daily"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDatabaseURL, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
