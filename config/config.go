package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Server  ServerConfig
	Backend BackendConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	JWT     JWTConfig
	Log     LogConfig
	Retry   RetryConfig
}

type ServerConfig struct {
	HTTPPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig holds the outbound call settings shared by the adapter,
// voucher and order components.
type BackendConfig struct {
	RequestTimeout time.Duration
	OrderTTL       time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8086),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Backend: BackendConfig{
			RequestTimeout: getEnvAsDuration("BACKEND_REQUEST_TIMEOUT", 10*time.Second),
			OrderTTL:       getEnvAsDuration("BACKEND_ORDER_TTL", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 2*time.Hour),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.HTTPPort)
	}

	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend request timeout must be positive")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Env == "production" && c.JWT.Secret == "jwt-secret" {
		return fmt.Errorf("JWT secret must be set in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
