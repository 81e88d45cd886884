package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SITEPAY_DB_DSN"
	EnvDBHost = "SITEPAY_DB_HOST"
	EnvDBUser = "SITEPAY_DB_USER"
	EnvDBName = "SITEPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Eligibility  EligibilityConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SITEPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"SITEPAY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SITEPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SITEPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SITEPAY_DB_DSN"`

	LegacyHost     string `envconfig:"SITEPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"SITEPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SITEPAY_DB_USER"`
	LegacyPassword string `envconfig:"SITEPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SITEPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SITEPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SITEPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SITEPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SITEPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SITEPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SITEPAY_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"SITEPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SITEPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SITEPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SITEPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SITEPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SITEPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SITEPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SITEPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// EligibilityConfig tunes the payment indicator windows and the retry budget
// for lock-conflicted recalculations.
type EligibilityConfig struct {
	DueSoonDays       int `envconfig:"SITEPAY_ELIGIBILITY_DUE_SOON_DAYS" default:"7"`
	UrgentDays        int `envconfig:"SITEPAY_ELIGIBILITY_URGENT_DAYS" default:"3"`
	RecalcMaxAttempts int `envconfig:"SITEPAY_ELIGIBILITY_RECALC_MAX_ATTEMPTS" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SITEPAY_FEATURE_AUTO_MIGRATE" default:"false"`
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
