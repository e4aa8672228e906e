package config

// EnvPrefix is passed to envconfig; every variable carries an explicit tag so the
// prefix only matters for envconfig's usage output.
const EnvPrefix = "parkpass"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared between Load, tests, and tooling.
const (
	EnvAppEnv   = "PARKPASS_APP_ENV"
	EnvLogLevel = "PARKPASS_LOG_LEVEL"

	EnvDBDSN      = "PARKPASS_DB_DSN"
	EnvDBHost     = "PARKPASS_DB_HOST"
	EnvDBPort     = "PARKPASS_DB_PORT"
	EnvDBUser     = "PARKPASS_DB_USER"
	EnvDBPassword = "PARKPASS_DB_PASSWORD"
	EnvDBName     = "PARKPASS_DB_NAME"

	EnvRedisURL = "PARKPASS_REDIS_URL"

	EnvQRSerialPrefix = "PARKPASS_QR_SERIAL_PREFIX"
	EnvQRSerialWidth  = "PARKPASS_QR_SERIAL_WIDTH"

	EnvLedgerAllowNegative = "PARKPASS_LEDGER_ALLOW_NEGATIVE"

	EnvReconcileFallbackRole = "PARKPASS_RECONCILE_FALLBACK_ROLE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
