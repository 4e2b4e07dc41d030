package config

// EnvPrefix is empty so the variable names below are read verbatim.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "CURIO_APP_ENV"
	EnvPort               = "CURIO_APP_PORT"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvDBHost             = "CURIO_DB_HOST"
	EnvDBUser             = "CURIO_DB_USER"
	EnvDBName             = "CURIO_DB_NAME"
	EnvRedisURL           = "CURIO_REDIS_URL"
	EnvSessionSecret      = "SESSION_SECRET"
	EnvStripeSecretKey    = "STRIPE_SECRET_KEY"
	EnvStripeWebhook      = "STRIPE_WEBHOOK_SECRET"
	EnvSendgridAPIKey     = "SENDGRID_API_KEY"
	EnvReplID             = "REPL_ID"
	EnvReplitDomains      = "REPLIT_DOMAINS"
	EnvIssuerURL          = "ISSUER_URL"
	EnvPlatformFeePercent = "PLATFORM_FEE_PERCENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
