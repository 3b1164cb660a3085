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
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the process configuration, read from the environment after an
// optional .env file has been loaded.
type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	StoreBackend   string
	ServerPort     string
	AllowedOrigins string

	// RedisAddress enables cross-process locks when set.
	RedisAddress string
	LockTTL      time.Duration
	LockWait     time.Duration

	LogLevel  string
	LogFormat string

	// PubSubProjectID and PubSubTopic enable event publishing when both are set.
	PubSubProjectID string
	PubSubTopic     string

	DefaultActor string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
		RedisAddress:    os.Getenv("REDIS_ADDRESS"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		PubSubProjectID: pubSubProjectID(),
		PubSubTopic:     os.Getenv("PUBSUB_TOPIC"),
		DefaultActor:    getEnv("DEFAULT_ACTOR", "system"),
	}

	var err error
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = getDuration("LOCK_WAIT", 5*time.Second); err != nil {
		return nil, err
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DB_MAX_CONNS %q", v)
		}
		cfg.DBMaxConns = int32(n)
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want postgres or memory)", cfg.StoreBackend)
	}
	return cfg, nil
}

// PublishingEnabled reports whether events go to Pub/Sub rather than the log.
func (c *Config) PublishingEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubTopic != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration like 5s", key, v)
	}
	return d, nil
}

func pubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run sets this.
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}
