package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"refwallet/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string
	StoreTimeout time.Duration // Upper bound for a single store round trip

	// HTTP configuration
	HTTPAddr           string
	CORSAllowedOrigins string // comma-separated

	// Referral configuration
	CreditRate       decimal.Decimal // Share of the competition fee credited to each side
	CreditLockPeriod time.Duration   // Time until a credit matures
	CodeLength       int
	CodeMaxAttempts  int

	// Redis configuration (code cache, optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CodeCacheTTL  time.Duration

	// NATS configuration (event forwarding, optional)
	NATSServers string

	// OpenTelemetry configuration
	OTelEnabled        bool
	OTelExporterType   string // "console", "otlp" or "none"
	OTelServiceName    string
	OTelOTLPEndpoint   string
	OTelExportInterval time.Duration

	// Environment
	Environment string // "development", "production" or "test"
	LogLevel    string
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// SetForTesting replaces the global configuration instance
func SetForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// NewTestConfig returns a configuration suitable for tests
func NewTestConfig() *Config {
	return &Config{
		StoreTimeout:       5 * time.Second,
		HTTPAddr:           ":0",
		CreditRate:         decimal.RequireFromString("0.05"),
		CreditLockPeriod:   30 * 24 * time.Hour,
		CodeLength:         5,
		CodeMaxAttempts:    10,
		CodeCacheTTL:       time.Hour,
		OTelServiceName:    "refwallet",
		OTelExporterType:   "console",
		OTelExportInterval: time.Minute,
		Environment:        "test",
		LogLevel:           "debug",
	}
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// CORSOrigins returns the allowed origins as a slice
func (c *Config) CORSOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}

// ConfigureLogging applies the level and formatter for the environment
func (c *Config) ConfigureLogging() {
	if c.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine; the environment is authoritative
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),
		StoreTimeout: getDuration("STORE_TIMEOUT", 5*time.Second),

		HTTPAddr:           getEnvWithDefault("HTTP_ADDR", ":8000"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),

		CreditRate:       decimal.RequireFromString("0.05"),
		CreditLockPeriod: getDuration("REFERRAL_LOCK_PERIOD", 30*24*time.Hour),
		CodeLength:       getInt("REFERRAL_CODE_LENGTH", 5),
		CodeMaxAttempts:  getInt("REFERRAL_CODE_MAX_ATTEMPTS", 10),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		CodeCacheTTL:  getDuration("CODE_CACHE_TTL", 24*time.Hour),

		NATSServers: os.Getenv("NATS_SERVERS"),

		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:   getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelServiceName:    getEnvWithDefault("OTEL_SERVICE_NAME", "refwallet"),
		OTelOTLPEndpoint:   getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportInterval: getDuration("OTEL_EXPORT_INTERVAL", time.Minute),

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if rate := os.Getenv("REFERRAL_CREDIT_RATE"); rate != "" {
		parsed, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid REFERRAL_CREDIT_RATE %q: %w", rate, err)
		}
		config.CreditRate = parsed
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Environment != "test" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !c.CreditRate.IsPositive() || c.CreditRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("REFERRAL_CREDIT_RATE must be in (0, 1], got %s", c.CreditRate)
	}
	if c.CodeLength <= 0 {
		return fmt.Errorf("REFERRAL_CODE_LENGTH must be positive")
	}
	if c.CodeMaxAttempts <= 0 {
		return fmt.Errorf("REFERRAL_CODE_MAX_ATTEMPTS must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	return nil
}

func getEnvWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Warnf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Warnf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}
