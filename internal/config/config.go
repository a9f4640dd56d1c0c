package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	LogLevel   string

	DatabaseURL  string
	StorePath    string
	RedisAddr    string
	KafkaBrokers []string
	AuditTopic   string

	JWTSecret       []byte
	AdminSecretHash string

	PostLimit      int
	DebounceWindow time.Duration
	SaveSettle     time.Duration
	IdleTimeout    time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return &Config{
		ServerPort: EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL:  must(os.Getenv("DATABASE_URL"), "DATABASE_URL"),
		StorePath:    EnvDefault("STORE_PATH", "storefront.db"),
		RedisAddr:    EnvDefault("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:   EnvDefault("AUDIT_TOPIC", "admin_audit"),

		JWTSecret:       []byte(must(os.Getenv("JWT_SECRET"), "JWT_SECRET")),
		AdminSecretHash: must(os.Getenv("ADMIN_SECRET_HASH"), "ADMIN_SECRET_HASH"),

		PostLimit:      EnvIntDefault("POST_LIMIT", 6),
		DebounceWindow: EnvDurDefault("SEARCH_DEBOUNCE", 400*time.Millisecond),
		SaveSettle:     EnvDurDefault("STORE_SETTLE", 250*time.Millisecond),
		IdleTimeout:    EnvDurDefault("IDLE_TIMEOUT", 30*time.Minute),

		RateLimitWindow: EnvDurDefault("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:    EnvIntDefault("RATE_LIMIT_MAX", 10),
	}
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
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

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func EnvDurDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
