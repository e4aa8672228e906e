package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	QR           QRConfig
	Ledger       LedgerConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.QR.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PARKPASS_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"PARKPASS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARKPASS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PARKPASS_DB_DSN"`
	Driver string `envconfig:"PARKPASS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARKPASS_DB_HOST"`
	LegacyPort     int    `envconfig:"PARKPASS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARKPASS_DB_USER"`
	LegacyPassword string `envconfig:"PARKPASS_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARKPASS_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARKPASS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARKPASS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARKPASS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARKPASS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARKPASS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARKPASS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARKPASS_REDIS_ADDR"`
	Password     string        `envconfig:"PARKPASS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARKPASS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARKPASS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARKPASS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARKPASS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARKPASS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARKPASS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// QRConfig controls how serial numbers render on printed codes. External scanners
// depend on the exact textual format, so changing these is a migration event, not
// a tuning knob.
type QRConfig struct {
	SerialPrefix string `envconfig:"PARKPASS_QR_SERIAL_PREFIX" default:"SR"`
	SerialWidth  int    `envconfig:"PARKPASS_QR_SERIAL_WIDTH" default:"6"`
}

func (q QRConfig) validate() error {
	if strings.TrimSpace(q.SerialPrefix) == "" {
		return fmt.Errorf("%s must not be blank", EnvQRSerialPrefix)
	}
	if q.SerialWidth < 1 || q.SerialWidth > 18 {
		return fmt.Errorf("%s must be between 1 and 18, got %d", EnvQRSerialWidth, q.SerialWidth)
	}
	return nil
}

type LedgerConfig struct {
	AllowNegative   bool          `envconfig:"PARKPASS_LEDGER_ALLOW_NEGATIVE" default:"true"`
	BalanceCacheTTL time.Duration `envconfig:"PARKPASS_LEDGER_BALANCE_CACHE_TTL" default:"5m"`
}

type ReconcileConfig struct {
	FallbackRole string        `envconfig:"PARKPASS_RECONCILE_FALLBACK_ROLE"`
	BatchLimit   int           `envconfig:"PARKPASS_RECONCILE_BATCH_LIMIT" default:"500"`
	Interval     time.Duration `envconfig:"PARKPASS_RECONCILE_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PARKPASS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PARKPASS_AUTO_MIGRATE" default:"false"`
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
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
