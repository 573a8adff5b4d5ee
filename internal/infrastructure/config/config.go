package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full process configuration, decoded from config.toml and
// FS_* environment variables
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Finance  FinanceConfig  `mapstructure:"finance"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Port    string `mapstructure:"port"`
	Version string `mapstructure:"version"` // overridden by the server's build version
}

// DatabaseConfig locates the gorm record store
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres or sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite file, ":memory:" for a private in-memory database
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig locates the redis record store and idempotency keys
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // gorm, redis or memory
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	CORSAllowOrigins  []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods  []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders  []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`

	// Idempotency-Key handling for mutating requests
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
}

type FinanceConfig struct {
	MaxForecastMonths int    `mapstructure:"max_forecast_months"`
	Currency          string `mapstructure:"currency"` // ISO 4217 code used in notifications
	Locale            string `mapstructure:"locale"`   // BCP 47 tag used in notifications
}

// StorageConfig selects where backup archives go
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // s3, local or none
	LocalDir  string `mapstructure:"local_dir"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"` // custom endpoint, e.g. MinIO
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig controls OpenTelemetry spans for HTTP requests and SQL
type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Endpoint      string  `mapstructure:"endpoint"` // OTLP gRPC collector, host:port
	Insecure      bool    `mapstructure:"insecure"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
}

// defaults registers every key, so FS_* variables reach keys that config.toml
// leaves out
var defaults = map[string]any{
	"app.name": "fieldservice-backend",
	"app.env":  "development",
	"app.port": "8080",
	"app.version": "dev",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "fieldservice",
	"database.sslmode":            "disable",
	"database.path":               "fieldservice.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":       "localhost",
	"redis.port":       6379,
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "fieldservice",

	"store.backend": "gorm",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       int64(32 << 20), // backups can be large
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "Accept", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":     []string{},
	"http.idempotency_enabled": false,
	"http.idempotency_ttl":     24 * time.Hour,

	"finance.max_forecast_months": 36,
	"finance.currency":            "BRL",
	"finance.locale":              "pt-BR",

	"storage.backend":    "local",
	"storage.local_dir":  "backups",
	"storage.bucket":     "",
	"storage.region":     "us-east-1",
	"storage.endpoint":   "",
	"storage.access_key": "",
	"storage.secret_key": "",
	"storage.prefix":     "backups/",
	"storage.path_style": false,

	"metrics.enabled":   false,
	"metrics.path":      "/metrics",
	"metrics.namespace": "fieldservice",

	"tracing.enabled":        false,
	"tracing.endpoint":       "localhost:4317",
	"tracing.insecure":       true,
	"tracing.sampling_ratio": 1.0,
}

// Load reads configuration. Later sources win:
// built-in defaults, config.toml, .env, FS_* environment variables.
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./backend", "/app"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func oneOf(key, got string, allowed ...string) error {
	if slices.Contains(allowed, got) {
		return nil
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), got)
}

// validate reports every problem at once
func (c *Config) validate() error {
	problems := []error{
		oneOf("database.driver", c.Database.Driver, "postgres", "sqlite"),
		oneOf("store.backend", c.Store.Backend, "gorm", "redis", "memory"),
		oneOf("storage.backend", c.Storage.Backend, "s3", "local", "none"),
	}
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		add("storage.bucket is required for the s3 backend")
	}
	switch {
	case c.Database.MaxOpenConns <= 0:
		add("database.max_open_conns must be positive")
	case c.Database.MaxIdleConns < 0:
		add("database.max_idle_conns cannot be negative")
	case c.Database.MaxIdleConns > c.Database.MaxOpenConns:
		add("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Finance.MaxForecastMonths < 1 {
		add("finance.max_forecast_months must be positive")
	}
	if len(c.Finance.Currency) != 3 {
		add("finance.currency must be an ISO 4217 code, got %q", c.Finance.Currency)
	}
	if c.HTTP.IdempotencyEnabled && c.HTTP.IdempotencyTTL <= 0 {
		add("http.idempotency_ttl must be positive")
	}
	if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
		add("tracing.sampling_ratio must be between 0 and 1, got %g", c.Tracing.SamplingRatio)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		add("tracing.endpoint is required when tracing is enabled")
	}

	if c.App.Env == "production" {
		if c.Store.Backend == "memory" {
			add("store.backend=memory loses data on restart and is not allowed in production")
		}
		if c.Store.Backend == "gorm" && c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				add("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				add("database.sslmode cannot be 'disable' in production")
			}
		}
		if slices.Contains(c.HTTP.CORSAllowOrigins, "*") {
			add("http.cors_allow_origins cannot be '*' in production, list the origins")
		}
	}
	return errors.Join(problems...)
}

// DSN is the driver connection string: the file path for sqlite, an
// escaped postgres URL otherwise
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
