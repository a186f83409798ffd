package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all app configuration
type Config struct {
	Env string

	// Server
	HTTPPort string

	// Protocol
	Authority      string
	RewardRate     uint64
	EpochDuration  time.Duration
	MinVolume      uint64
	AutoInitialize bool

	// State
	StateDBPath      string // empty keeps state in memory
	TransferTimeout  time.Duration
	RewardVaultFunds uint64            // seeded into the reward vault of a fresh ledger
	DemoBalances     map[string]uint64 // seeded into a fresh ledger, "owner:amount" pairs

	// Redis
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// ClickHouse
	ClickhouseEnabled  bool
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseAddr     string
	ClickhouseTimeout  int

	// Kafka
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	KafkaBatchSize     int
	KafkaBatchTimeout  int // milliseconds

	// App settings
	EventBufferSize int
	DedupCacheSize  int
	DemoSwaps       bool
}

// LoadConfig loads configuration from environment variables, with optional .env file.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f) // a missing file is fine
	}

	return &Config{
		Env: getEnv("ENV", "local"),

		// Server
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		// Protocol
		Authority:      getEnv("AUTHORITY", "authority"),
		RewardRate:     getEnvAsUint64("REWARD_RATE", 100),
		EpochDuration:  getEnvAsSeconds("EPOCH_DURATION_SECONDS", 24*time.Hour),
		MinVolume:      getEnvAsUint64("MIN_VOLUME", 5000),
		AutoInitialize: getEnvAsBool("AUTO_INITIALIZE", true),

		// State
		StateDBPath:      getEnv("STATE_DB_PATH", ""),
		TransferTimeout:  time.Duration(getEnvAsInt("TRANSFER_TIMEOUT_MS", 5000)) * time.Millisecond,
		RewardVaultFunds: getEnvAsUint64("REWARD_VAULT_FUNDS", 1_000_000_000_000_000),
		DemoBalances:     getEnvAsBalances("DEMO_BALANCES"),

		// Redis
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisTTL:      getEnvAsSeconds("REDIS_TTL_SECONDS", 0),

		// ClickHouse
		ClickhouseEnabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),

		// Kafka
		KafkaEnabled:       getEnvAsBool("KAFKA_ENABLED", false),
		KafkaBrokers:       getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}, ","),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "swaps"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "orderflow-group"),
		KafkaBatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 500),
		KafkaBatchTimeout:  getEnvAsInt("KAFKA_BATCH_TIMEOUT", 3000),

		// App settings
		EventBufferSize: getEnvAsInt("EVENT_BUFFER_SIZE", 10000),
		DedupCacheSize:  getEnvAsInt("DEDUP_CACHE_SIZE", 100_000),
		DemoSwaps:       getEnvAsBool("DEMO_SWAPS", false),
	}
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsUint64(key string, defaultVal uint64) uint64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultVal
}

// getEnvAsSeconds falls back to defaultVal for negative values and for
// values a time.Duration cannot hold.
func getEnvAsSeconds(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil || value < 0 || value > math.MaxInt64/int64(time.Second) {
		return defaultVal
	}
	return time.Duration(value) * time.Second
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}

// getEnvAsBalances parses "owner:amount" pairs separated by commas.
// Malformed pairs are skipped.
func getEnvAsBalances(key string) map[string]uint64 {
	balances := make(map[string]uint64)
	for _, pair := range getEnvAsSlice(key, nil, ",") {
		owner, amountStr, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || owner == "" {
			continue
		}
		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			continue
		}
		balances[owner] = amount
	}
	return balances
}
