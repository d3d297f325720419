package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	StoreBaseURL       string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	RedisAddr     string
	RedisPassword string
	HandoffTTL    time.Duration

	KafkaBrokers []string
	OrdersTopic  string
	// OrderEventsGroup is this instance's consumer group for order events.
	// Empty means one group per host.
	OrderEventsGroup string

	ShippingFee        int64
	ClassifyByCategory bool

	HistoryRefreshInterval time.Duration
	RecoveryInterval       time.Duration
	ClearCartAttempts      int
	ReadRetries            int
	Timezone               string

	LogEnv string
}

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found.
func Load() (*Config, bool) {
	dotenv := godotenv.Load() == nil

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		StoreBaseURL:       getEnv("STORE_BASE_URL", "http://localhost:3000"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		HandoffTTL:    getDuration("HANDOFF_TTL", 30*time.Minute),

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		OrdersTopic:  getEnv("ORDERS_TOPIC", "orders.placed"),

		OrderEventsGroup: getEnv("ORDER_EVENTS_GROUP", ""),

		ShippingFee:        getInt64("SHIPPING_FEE", 30000),
		ClassifyByCategory: getBool("CLASSIFY_BY_CATEGORY", false),

		HistoryRefreshInterval: getDuration("HISTORY_REFRESH_INTERVAL", 30*time.Second),
		RecoveryInterval:       getDuration("RECOVERY_INTERVAL", 15*time.Second),
		ClearCartAttempts:      int(getInt64("CLEAR_CART_ATTEMPTS", 3)),
		ReadRetries:            int(getInt64("READ_RETRIES", 2)),
		Timezone:               getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"),

		LogEnv: getEnv("LOG_ENV", "development"),
	}, dotenv
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
