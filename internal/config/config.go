package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server      ServerConfig
	Backend     BackendConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Mongo       MongoConfig
	Idempotency IdempotencyConfig
	Kafka       KafkaConfig
	Checkout    CheckoutConfig
	LogLevel    string
}

type ServerConfig struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	// SecureCookies marks the guest cookie Secure. Turn off only for plain
	// HTTP development setups.
	SecureCookies bool
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CacheTTL   time.Duration
	SessionTTL time.Duration
}

type MongoConfig struct {
	URI    string
	DBName string
}

type IdempotencyConfig struct {
	Driver         string
	DSN            string
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// InstanceID names this instance's consumer group. Defaults to the host name.
	InstanceID string
}

type CheckoutConfig struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	PaymentPollInterval   time.Duration
	PaymentPollTimeout    time.Duration
}

func Load() (*Config, error) {
	// a missing .env is fine, the environment still applies
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:           getEnv("HTTP_PORT", "8080"),
			RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
			SecureCookies:      getEnvBool("SECURE_COOKIES", true),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:3000/api"),
			Timeout: getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			CacheTTL:   getEnvDuration("CACHE_TTL", 5*time.Minute),
			SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),
		},
		Mongo: MongoConfig{
			URI:    getEnv("MONGO_URI", ""),
			DBName: getEnv("MONGO_DB_NAME", "storefront"),
		},
		Idempotency: IdempotencyConfig{
			Driver:         getEnv("IDEMPOTENCY_DRIVER", "sqlite"),
			DSN:            getEnv("IDEMPOTENCY_DSN", "file:storefront.db"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvList("KAFKA_BROKERS"),
			Topic:      getEnv("KAFKA_TOPIC", "storefront-orders"),
			InstanceID: getEnv("INSTANCE_ID", hostname()),
		},
		Checkout: CheckoutConfig{
			FreeShippingThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(500000)),
			FlatShippingFee:       getEnvDecimal("FLAT_SHIPPING_FEE", decimal.NewFromInt(35000)),
			PaymentPollInterval:   getEnvDuration("PAYMENT_POLL_INTERVAL", 2*time.Second),
			PaymentPollTimeout:    getEnvDuration("PAYMENT_POLL_TIMEOUT", 60*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer for %s, using default", key)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid boolean for %s, using default", key)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration for %s, using default", key)
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid decimal for %s, using default", key)
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
