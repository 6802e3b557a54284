// internal/pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequiredConfig marks a required setting left empty or unresolved.
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// Ledger drivers
const (
	LedgerMemory   = "memory"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Backend  BackendConfig
	Cart     CartConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Asynq    AsynqConfig
	Secrets  SecretsConfig
	Security SecurityConfig
	Metrics  MetricsConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string `validate:"present"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
}

// BackendConfig points at the CLOTHIFY REST backend
type BackendConfig struct {
	BaseURL   string `validate:"present,http_url"`
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	UserAgent string
}

// CartConfig tunes the cart state container
type CartConfig struct {
	RemoveDelay           time.Duration `validate:"gte=0"`
	CorrectionConcurrency int           `validate:"gt=0"`
	NoticeCapacity        int
	EventsKeepAlive       time.Duration
}

// LedgerConfig selects where quantity ledgers live
type LedgerConfig struct {
	Driver        string `validate:"oneof=memory redis postgres"`
	TTL           time.Duration
	CleanupMaxAge time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host          string
	Port          string
	Password      string
	DB            int
	MaxRetries    int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PoolSize      int `validate:"gt=0"`
	MinIdleConns  int
	PoolTimeout   time.Duration
	EventsChannel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxConnections     int32 `validate:"gtefield=MinConnections"`
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	StatementCacheMode string
	EnableQueryLogging bool
	MigrationPath      string
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	Concurrency       int
	Queues            map[string]int // queue name -> priority
	StrictPriority    bool
	RetryMax          int
	ShutdownTimeout   time.Duration
	CorrectionQueue   string
	CorrectionUnique  time.Duration
	CorrectionTimeout time.Duration
	CleanupSchedule   string
}

// SecretsConfig selects the secrets provider
type SecretsConfig struct {
	Provider        string `validate:"oneof=env aws"`
	AWSRegion       string
	AWSSecretName   string
	AWSAccessKeyID  string
	AWSSecretKey    string
	// AWSEndpoint points the client at LocalStack or another compatible endpoint.
	AWSEndpoint     string
	ServiceTokenKey string
	CacheTTL        time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	// JWTSecret enables signature checks on session tokens when set.
	JWTSecret         string
	RateLimitRequests int `validate:"gt=0"`
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables, an optional .env file
// in development and an optional CONFIG_FILE.
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, env)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logger.Info("config file loaded", slog.String("file", v.ConfigFileUsed()))
	}

	cfg := build(v, env)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func build(v *viper.Viper, env string) *Config {
	e := envReader{v: v}
	redisHost := e.str("REDIS_HOST", "localhost")
	redisPort := e.str("REDIS_PORT", "6379")

	return &Config{
		App: AppConfig{
			Name:        e.str("APP_NAME", "clothify-cart"),
			Environment: env,
			Version:     e.str("APP_VERSION", "dev"),
			LogLevel:    e.str("LOG_LEVEL", "info"),
			LogFormat:   e.str("LOG_FORMAT", "json"),
			Debug:       e.boolean("APP_DEBUG", env == "development"),
		},
		Server: ServerConfig{
			Host:            e.str("SERVER_HOST", "0.0.0.0"),
			Port:            e.str("SERVER_PORT", "8080"),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     e.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:  e.integer("SERVER_MAX_HEADER_BYTES", 1<<20),
			GracefulTimeout: e.duration("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			TLSEnabled:      e.boolean("TLS_ENABLED", false),
			TLSCertFile:     e.str("TLS_CERT_FILE", ""),
			TLSKeyFile:      e.str("TLS_KEY_FILE", ""),
		},
		Backend: BackendConfig{
			BaseURL:   e.str("BACKEND_BASE_URL", "http://localhost:8081"),
			Timeout:   e.duration("BACKEND_TIMEOUT", 10*time.Second),
			RateLimit: e.float("BACKEND_RATE_LIMIT", 50),
			Burst:     e.integer("BACKEND_BURST", 20),
			UserAgent: e.str("BACKEND_USER_AGENT", "clothify-cart"),
		},
		Cart: CartConfig{
			RemoveDelay:           e.duration("CART_REMOVE_DELAY", 300*time.Millisecond),
			CorrectionConcurrency: e.integer("CART_CORRECTION_CONCURRENCY", 4),
			NoticeCapacity:        e.integer("CART_NOTICE_CAPACITY", 20),
			EventsKeepAlive:       e.duration("CART_EVENTS_KEEPALIVE", 25*time.Second),
		},
		Ledger: LedgerConfig{
			Driver:        strings.ToLower(e.str("LEDGER_DRIVER", LedgerMemory)),
			TTL:           e.duration("LEDGER_TTL", 30*24*time.Hour),
			CleanupMaxAge: e.duration("LEDGER_CLEANUP_MAX_AGE", 30*24*time.Hour),
		},
		Redis: RedisConfig{
			Host:          redisHost,
			Port:          redisPort,
			Password:      e.str("REDIS_PASSWORD", ""),
			DB:            e.integer("REDIS_DB", 0),
			MaxRetries:    e.integer("REDIS_MAX_RETRIES", 3),
			DialTimeout:   e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:      e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns:  e.integer("REDIS_MIN_IDLE_CONNS", 2),
			PoolTimeout:   e.duration("REDIS_POOL_TIMEOUT", 4*time.Second),
			EventsChannel: e.str("REDIS_EVENTS_CHANNEL", "cart:events"),
		},
		Database: DatabaseConfig{
			Host:               e.str("DB_HOST", "localhost"),
			Port:               e.str("DB_PORT", "5432"),
			User:               e.str("DB_USER", "clothify"),
			Password:           e.str("DB_PASSWORD", "clothify_dev"),
			Name:               e.str("DB_NAME", "clothify_cart"),
			SSLMode:            e.str("DB_SSL_MODE", "disable"),
			MaxConnections:     int32(e.integer("DB_MAX_CONNECTIONS", 10)),
			MinConnections:     int32(e.integer("DB_MIN_CONNECTIONS", 2)),
			MaxConnLifetime:    e.duration("DB_CONNECTION_LIFETIME", time.Hour),
			MaxConnIdleTime:    e.duration("DB_IDLE_TIME", 30*time.Minute),
			HealthCheckPeriod:  e.duration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:     e.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
			StatementCacheMode: e.str("DB_STATEMENT_CACHE_MODE", "describe"),
			EnableQueryLogging: e.boolean("DB_QUERY_LOGGING", false),
			MigrationPath:      e.str("DB_MIGRATION_PATH", ""),
		},
		Asynq: AsynqConfig{
			RedisAddr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
			RedisPassword:     e.str("REDIS_PASSWORD", ""),
			RedisDB:           e.integer("ASYNQ_REDIS_DB", 1),
			Concurrency:       e.integer("ASYNQ_CONCURRENCY", 10),
			Queues:            parseQueues(e.str("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:    e.boolean("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:          e.integer("ASYNQ_RETRY_MAX", 5),
			ShutdownTimeout:   e.duration("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			CorrectionQueue:   e.str("ASYNQ_CORRECTION_QUEUE", "critical"),
			CorrectionUnique:  e.duration("ASYNQ_CORRECTION_UNIQUE", 5*time.Minute),
			CorrectionTimeout: e.duration("ASYNQ_CORRECTION_TIMEOUT", 30*time.Second),
			CleanupSchedule:   e.str("ASYNQ_CLEANUP_SCHEDULE", "@every 6h"),
		},
		Secrets: SecretsConfig{
			Provider:        strings.ToLower(e.str("SECRETS_PROVIDER", "env")),
			AWSRegion:       e.str("AWS_REGION", "us-east-1"),
			AWSSecretName:   e.str("AWS_SECRET_NAME", "clothify-cart"),
			AWSAccessKeyID:  e.str("AWS_ACCESS_KEY_ID", ""),
			AWSSecretKey:    e.str("AWS_SECRET_ACCESS_KEY", ""),
			AWSEndpoint:     e.str("AWS_ENDPOINT_URL", ""),
			ServiceTokenKey: e.str("SERVICE_TOKEN_KEY", "CLOTHIFY_SERVICE_TOKEN"),
			CacheTTL:        e.duration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret:         e.str("JWT_SECRET", ""),
			RateLimitRequests: e.integer("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: e.duration("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    e.slice("ALLOWED_ORIGINS", []string{"*"}),
			SecureHeaders:     e.boolean("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   e.str("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Metrics: MetricsConfig{
			Enabled: e.boolean("ENABLE_METRICS", true),
			Path:    e.str("METRICS_PATH", "/metrics"),
		},
	}
}

// Validate runs the validators that apply to the environment
func (c *Config) Validate() error {
	validators := []interface{ Validate(*Config) error }{&BasicValidator{}}
	if c.IsProduction() {
		validators = append(validators, &ProductionValidator{}, &SecurityValidator{})
	}
	for _, v := range validators {
		if err := v.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns host:port for the ledger and event relay client
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("APP_NAME", "clothify-cart")
	v.SetDefault("APP_ENV", env)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// envReader reads typed settings through viper, falling back to a default
// when the value is unset or unparsable.
type envReader struct {
	v *viper.Viper
}

func (e envReader) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e.v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) boolean(key string, defaultValue bool) bool {
	if value := e.v.GetString(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (e envReader) integer(key string, defaultValue int) int {
	if value := e.v.GetString(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (e envReader) float(key string, defaultValue float64) float64 {
	if value := e.v.GetString(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e.v.GetString(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (e envReader) slice(key string, defaultValue []string) []string {
	value := e.v.GetString(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range strings.Split(queuesStr, ",") {
		name, weight, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		priority, err := strconv.Atoi(strings.TrimSpace(weight))
		if err == nil && priority > 0 {
			queues[strings.TrimSpace(name)] = priority
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
