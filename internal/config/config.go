package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	// SQLite Configuration (record store)
	SQLitePath string
	// Point of sale rules
	TaxRate            float64
	MaxQuantityPerLine int
	MaxDiscountPercent float64
	LowStockThreshold  int
	// Sync queue
	SyncMaxAttempts      int
	SyncRetryDelayMs     int
	SyncRetentionDays    int
	SyncCleanupInterval  int // minutes, 0 disables the periodic cleanup
	StartOnline          bool
	ConnectivityCheckSec int // seconds between backend probes, 0 disables them
	QueueBackend         string // sqlite, redis or memory
	RemoteTransport      string // kafka or simulated
	RemoteTimeoutMs      int
	SimulatedFailureRate float64
	// Redis Configuration (optional queue backend)
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	// JWT Configuration
	JWTSecret        string
	JWTExpiryMinutes int
	CashierUsers     map[string]string // username -> password
	// HTTP
	IdempotencyTTLMinutes int
	Timezone              string
	// Kafka Configuration (remote backend transport)
	KafkaBrokers        []string
	KafkaTopicSales     string
	KafkaTopicCustomers string
	KafkaTopicProducts  string
	KafkaTopicReports   string
	KafkaClientID       string
	KafkaAcks           string
	KafkaRetries        int
}

func Load() *Config {
	// .env file is optional, continue with environment variables
	_ = godotenv.Load()

	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9093")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	for i, broker := range kafkaBrokers {
		kafkaBrokers[i] = strings.TrimSpace(broker)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "./pos.db"),
		// Point of sale rules
		TaxRate:            getEnvAsFloat("TAX_RATE", 0.15),
		MaxQuantityPerLine: getEnvAsInt("MAX_QUANTITY_PER_LINE", 999),
		MaxDiscountPercent: getEnvAsFloat("MAX_DISCOUNT_PERCENT", 50),
		LowStockThreshold:  getEnvAsInt("LOW_STOCK_THRESHOLD", 10),
		// Sync queue
		SyncMaxAttempts:      getEnvAsInt("SYNC_MAX_ATTEMPTS", 3),
		SyncRetryDelayMs:     getEnvAsInt("SYNC_RETRY_DELAY_MS", 1500),
		SyncRetentionDays:    getEnvAsInt("SYNC_RETENTION_DAYS", 7),
		SyncCleanupInterval:  getEnvAsInt("SYNC_CLEANUP_INTERVAL_MINUTES", 60),
		StartOnline:          getEnvAsBool("START_ONLINE", true),
		ConnectivityCheckSec: getEnvAsInt("CONNECTIVITY_CHECK_INTERVAL_SECONDS", 30),
		QueueBackend:         getEnv("QUEUE_BACKEND", "sqlite"),
		RemoteTransport:      getEnv("REMOTE_TRANSPORT", "simulated"),
		RemoteTimeoutMs:      getEnvAsInt("REMOTE_TIMEOUT_MS", 5000),
		SimulatedFailureRate: getEnvAsFloat("SIMULATED_FAILURE_RATE", 0.1),
		// Redis Configuration (optional)
		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "pos:"),
		// JWT Configuration
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production-min-32-chars"),
		JWTExpiryMinutes: getEnvAsInt("JWT_EXPIRY_MINUTES", 480),
		CashierUsers:     parseUsers(getEnv("CASHIER_USERS", "admin:admin123,cashier:cashier123")),
		// HTTP
		IdempotencyTTLMinutes: getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 5),
		Timezone:              getEnv("TIMEZONE", "Local"),
		// Kafka Configuration
		KafkaBrokers:        kafkaBrokers,
		KafkaTopicSales:     getEnv("KAFKA_TOPIC_SALES", "pos.sales"),
		KafkaTopicCustomers: getEnv("KAFKA_TOPIC_CUSTOMERS", "pos.customers"),
		KafkaTopicProducts:  getEnv("KAFKA_TOPIC_PRODUCTS", "pos.products"),
		KafkaTopicReports:   getEnv("KAFKA_TOPIC_REPORTS", "pos.reports"),
		KafkaClientID:       getEnv("KAFKA_CLIENT_ID", "pos-service"),
		KafkaAcks:           getEnv("KAFKA_ACKS", "all"),
		KafkaRetries:        getEnvAsInt("KAFKA_RETRIES", 3),
	}
}

// SyncRetryDelay returns the pause between failed actions within one drain pass
func (c *Config) SyncRetryDelay() time.Duration {
	return time.Duration(c.SyncRetryDelayMs) * time.Millisecond
}

// SyncRetention returns how long a pending action may wait before cleanup drops it
func (c *Config) SyncRetention() time.Duration {
	return time.Duration(c.SyncRetentionDays) * 24 * time.Hour
}

// RemoteTimeout returns the per-call deadline for remote sync operations
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMs) * time.Millisecond
}

// JWTExpiry returns how long a cashier token stays valid
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryMinutes) * time.Minute
}

// IdempotencyTTL returns how long a checkout response is replayed for a repeated request id
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMinutes) * time.Minute
}

// Location resolves Timezone, falling back to the host's zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// parseUsers reads "name:password" pairs separated by commas
func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || password == "" {
			continue
		}
		users[name] = password
	}
	return users
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.ToLower(value) == "true" || value == "1"
}
