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
	JWT          JWTConfig
	VNPay        VNPayConfig
	Summary      SummaryConfig
	Orders       OrdersConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"FRESHCART_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FRESHCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHCART_DB_DSN"`
	Driver string `envconfig:"FRESHCART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FRESHCART_DB_HOST"`
	Port     int    `envconfig:"FRESHCART_DB_PORT" default:"5432"`
	User     string `envconfig:"FRESHCART_DB_USER"`
	Password string `envconfig:"FRESHCART_DB_PASSWORD"`
	Name     string `envconfig:"FRESHCART_DB_NAME"`
	SSLMode  string `envconfig:"FRESHCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either FRESHCART_DB_DSN or host/user/name must be set")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	query := dsn.Query()
	query.Set("sslmode", d.SSLMode)
	dsn.RawQuery = query.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHCART_REDIS_URL"`
	Address      string        `envconfig:"FRESHCART_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FRESHCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FRESHCART_JWT_ISSUER" default:"freshcart"`
	ExpirationMinutes int    `envconfig:"FRESHCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// VNPayConfig carries the merchant credentials for the redirect gateway.
type VNPayConfig struct {
	TmnCode    string        `envconfig:"FRESHCART_VNPAY_TMN_CODE"`
	HashSecret string        `envconfig:"FRESHCART_VNPAY_HASH_SECRET"`
	PayURL     string        `envconfig:"FRESHCART_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string        `envconfig:"FRESHCART_VNPAY_RETURN_URL"`
	SessionTTL time.Duration `envconfig:"FRESHCART_VNPAY_SESSION_TTL" default:"15m"`
}

type SummaryConfig struct {
	TTL      time.Duration `envconfig:"FRESHCART_SUMMARY_TTL" default:"15m"`
	TimeZone string        `envconfig:"FRESHCART_SUMMARY_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
}

type OrdersConfig struct {
	MaxLineItems int `envconfig:"FRESHCART_ORDERS_MAX_LINE_ITEMS" default:"50"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"FRESHCART_CRON_INTERVAL" default:"10m"`
	LockTTL         time.Duration `envconfig:"FRESHCART_CRON_LOCK_TTL" default:"15m"`
	PaymentGrace    time.Duration `envconfig:"FRESHCART_CRON_PAYMENT_GRACE" default:"30m"`
	ExpiryBatchSize int           `envconfig:"FRESHCART_CRON_EXPIRY_BATCH_SIZE" default:"200"`
}

type RateLimitConfig struct {
	OrderWindow time.Duration `envconfig:"FRESHCART_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderLimit  int           `envconfig:"FRESHCART_RATE_LIMIT_ORDER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHCART_FEATURE_AUTO_MIGRATE" default:"false"`
}
