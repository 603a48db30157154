package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable consumed by the service.
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Paystack  PaystackConfig
	Reconcile ReconcileConfig
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
	Env          string `envconfig:"FARMGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMGATE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FARMGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMGATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMGATE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMGATE_DB_DSN"`
	Driver string `envconfig:"FARMGATE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FARMGATE_DB_HOST"`
	Port     int    `envconfig:"FARMGATE_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMGATE_DB_USER"`
	Password string `envconfig:"FARMGATE_DB_PASSWORD"`
	Name     string `envconfig:"FARMGATE_DB_NAME"`
	SSLMode  string `envconfig:"FARMGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either FARMGATE_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMGATE_REDIS_URL" required:"true"`
	Password     string        `envconfig:"FARMGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaystackConfig struct {
	SecretKey      string        `envconfig:"FARMGATE_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL        string        `envconfig:"FARMGATE_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL    string        `envconfig:"FARMGATE_PAYSTACK_CALLBACK_URL"`
	RequestTimeout time.Duration `envconfig:"FARMGATE_PAYSTACK_REQUEST_TIMEOUT" default:"10s"`
	MonthlyBudget  int           `envconfig:"FARMGATE_PAYSTACK_MONTHLY_BUDGET" default:"0"`
}

type ReconcileConfig struct {
	Interval          time.Duration `envconfig:"FARMGATE_RECONCILE_INTERVAL" default:"15m"`
	LockKey           string        `envconfig:"FARMGATE_RECONCILE_LOCK_KEY" default:"farmgate:reconcile:lock"`
	LockTTL           time.Duration `envconfig:"FARMGATE_RECONCILE_LOCK_TTL" default:"30m"`
	PendingSweepAge   time.Duration `envconfig:"FARMGATE_RECONCILE_PENDING_SWEEP_AGE" default:"30m"`
	AbandonAfter      time.Duration `envconfig:"FARMGATE_RECONCILE_ABANDON_AFTER" default:"24h"`
	SweepBatchSize    int           `envconfig:"FARMGATE_RECONCILE_SWEEP_BATCH_SIZE" default:"100"`
	MetricsListenAddr string        `envconfig:"FARMGATE_RECONCILE_METRICS_ADDR" default:":9102"`
}
