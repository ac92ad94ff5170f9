package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
)

type Config struct {
	Env     string
	Server  ServerConfig
	Redis   RedisConfig
	SQLite  SQLiteConfig
	Store   StoreConfig
	Kafka   KafkaConfig
	Discord DiscordConfig
	Voice   VoiceConfig
	Log     LogConfig
}

type ServerConfig struct {
	GRpcPort int
	// HTTPPort serves the ops API; 0 disables it.
	HTTPPort int
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int
}

type SQLiteConfig struct {
	Path string
}

type StoreConfig struct {
	Backend string
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

type DiscordConfig struct {
	Token            string
	RegisterCommands bool
}

type VoiceConfig struct {
	ConfirmDelay      time.Duration
	NotifyConcurrency int
	NotifyTimeout     time.Duration
	LaneBuffer        int
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			GRpcPort: getEnvAsInt("SERVER_GRPC_PORT", 50057),
			HTTPPort: getEnvAsInt("SERVER_HTTP_PORT", 8087),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),

			ConnectAttempts: getEnvAsInt("REDIS_CONNECT_ATTEMPTS", 3),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "vcping.db"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendRedis)),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "vcping-service"),
		},
		Discord: DiscordConfig{
			Token:            getEnv("DISCORD_TOKEN", ""),
			RegisterCommands: getEnvAsBool("DISCORD_REGISTER_COMMANDS", true),
		},
		Voice: VoiceConfig{
			ConfirmDelay:      getEnvAsDuration("VOICE_CONFIRM_DELAY", 60*time.Second),
			NotifyConcurrency: getEnvAsInt("VOICE_NOTIFY_CONCURRENCY", 8),
			NotifyTimeout:     getEnvAsDuration("VOICE_NOTIFY_TIMEOUT", 30*time.Second),
			LaneBuffer:        getEnvAsInt("VOICE_LANE_BUFFER", 64),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.GRpcPort)
	}

	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	switch c.Store.Backend {
	case StoreBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	case StoreBackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.Voice.ConfirmDelay <= 0 {
		return fmt.Errorf("voice confirm delay must be positive, got %s", c.Voice.ConfirmDelay)
	}

	if c.Voice.NotifyConcurrency <= 0 {
		return fmt.Errorf("voice notify concurrency must be positive, got %d", c.Voice.NotifyConcurrency)
	}

	return nil
}

// ValidateGateway checks the settings only the bot process needs.
func (c *Config) ValidateGateway() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN must be set")
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

	// Split by comma
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
