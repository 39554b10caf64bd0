package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	AMQP      AMQPConfig
	Gateway   GatewayConfig
	Auth      AuthConfig
	Billing   BillingConfig
	RateLimit RateLimitConfig
	// ExpirySweepInterval is how often pending payment requests are checked
	// for expiry.
	ExpirySweepInterval time.Duration
	LogLevel            slog.Level
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	AppName  string
	MaxConns int32
	MinConns int32
	// MaxConnIdle closes pooled connections unused for this long.
	MaxConnIdle       time.Duration
	HealthCheckPeriod time.Duration
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type MongoConfig struct {
	URI      string
	Database string
}

type AMQPConfig struct {
	// URL is optional; without it issued invoices are only logged.
	URL string
}

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	// Sandbox signs and numbers orders locally instead of calling the provider.
	Sandbox bool
}

type AuthConfig struct {
	JWTSecret string
}

type BillingConfig struct {
	TaxRateBps int
	Currency   string
	RequestTTL time.Duration
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresMaxConns, err := envInt("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresMinConns, err := envInt("POSTGRES_MIN_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if postgresMaxConns > 0 && postgresMinConns > postgresMaxConns {
		return nil, fmt.Errorf("%s: POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS", op)
	}

	postgresMaxConnIdle, err := envDuration("POSTGRES_MAX_CONN_IDLE", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresHealthCheck, err := envDuration("POSTGRES_HEALTH_CHECK_PERIOD", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	mongoDB := os.Getenv("MONGO_DB")
	if mongoDB == "" {
		mongoDB = "venuebook"
	}

	sandbox, err := envBool("GATEWAY_SANDBOX", false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gatewayBaseURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayBaseURL == "" {
		gatewayBaseURL = "https://api.razorpay.com"
	}

	gatewayKeyID := os.Getenv("GATEWAY_KEY_ID")
	if gatewayKeyID == "" && !sandbox {
		return nil, fmt.Errorf("%s: missing GATEWAY_KEY_ID", op)
	}

	gatewayKeySecret := os.Getenv("GATEWAY_KEY_SECRET")
	if gatewayKeySecret == "" {
		return nil, fmt.Errorf("%s: missing GATEWAY_KEY_SECRET", op)
	}

	gatewayTimeout, err := envDuration("GATEWAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	taxRateBps, err := envInt("TAX_RATE_BPS", 1800)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if taxRateBps < 0 {
		return nil, fmt.Errorf("%s: TAX_RATE_BPS must not be negative", op)
	}

	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "INR"
	}

	requestTTLDays, err := envInt("PAYMENT_REQUEST_TTL_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if requestTTLDays <= 0 {
		return nil, fmt.Errorf("%s: PAYMENT_REQUEST_TTL_DAYS must be positive", op)
	}

	sweepInterval, err := envDuration("EXPIRY_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rateLimit, err := envInt("RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rateWindow, err := envDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("%s: invalid LOG_LEVEL: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Postgres: PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     postgresHost,
			Port:     postgresPort,
			SSLMode:  postgresSSLMode,
			AppName:  envOr("POSTGRES_APP_NAME", "venuebook"),
			MaxConns: int32(postgresMaxConns),
			MinConns: int32(postgresMinConns),

			MaxConnIdle:       postgresMaxConnIdle,
			HealthCheckPeriod: postgresHealthCheck,
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Mongo: MongoConfig{
			URI:      mongoURI,
			Database: mongoDB,
		},
		AMQP: AMQPConfig{
			URL: os.Getenv("AMQP_URL"),
		},
		Gateway: GatewayConfig{
			BaseURL:   gatewayBaseURL,
			KeyID:     gatewayKeyID,
			KeySecret: gatewayKeySecret,
			Timeout:   gatewayTimeout,
			Sandbox:   sandbox,
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		Billing: BillingConfig{
			TaxRateBps: taxRateBps,
			Currency:   strings.ToUpper(currency),
			RequestTTL: time.Duration(requestTTLDays) * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Limit:  rateLimit,
			Window: rateWindow,
		},
		ExpirySweepInterval: sweepInterval,
		LogLevel:            level,
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
