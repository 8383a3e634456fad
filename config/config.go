package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/database"
	"github.com/yeremiapane/food-delivery/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver string
	DBDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	KafkaBrokers []string
	KafkaTopic   string
	// EventQueueSize bounds the queue in front of each external event sink.
	EventQueueSize int

	SessionGCInterval    time.Duration
	NotificationMaxAge   time.Duration
	WSRevalidateInterval time.Duration

	AllowedOrigin string
	LogLevel      string
}

// Load reads .env if present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DBDSN:         getEnv("DB_DSN", "food_delivery.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		KafkaTopic:    os.Getenv("KAFKA_TOPIC"),
		AllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionGCInterval, err = getDuration("SESSION_GC_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NotificationMaxAge, err = getDuration("NOTIFICATION_MAX_AGE", 0); err != nil {
		return nil, err
	}
	if cfg.WSRevalidateInterval, err = getDuration("WS_REVALIDATE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.EventQueueSize = 256
	if v := os.Getenv("EVENT_QUEUE_SIZE"); v != "" {
		if cfg.EventQueueSize, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid EVENT_QUEUE_SIZE %q: %w", v, err)
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if cfg.RedisDB, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
	}
	return cfg, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	return database.Open(cfg.DBDriver, cfg.DBDSN)
}

// InitRedis returns nil when REDIS_ADDR is unset.
func InitRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	utils.InfoLogger.Printf("Connected to Redis at %s", cfg.RedisAddr)
	return rdb, nil
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
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
