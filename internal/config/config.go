package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	DB DBConfig

	JWTSecret string

	// Stats cache and invalidation bus. Empty RedisAddr selects the
	// in-process implementations.
	RedisAddr     string
	RedisChannel  string
	StatsCacheTTL time.Duration
	StatsLocation *time.Location

	// Generation
	AnthropicAPIKey string
	AnthropicModel  string
	MockGenerator   bool
	CardsPerTopic   int
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns a lib/pq key=value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("STATS_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("config: STATS_CACHE_TTL: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("STATS_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("config: STATS_TIMEZONE: %w", err)
	}

	perTopic, err := strconv.Atoi(getEnv("CARDS_PER_TOPIC", "5"))
	if err != nil || perTopic <= 0 {
		return nil, fmt.Errorf("config: CARDS_PER_TOPIC must be a positive integer")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "flashlearn"),
			Password: getEnv("DB_PASSWORD", "flashlearn"),
			Name:     getEnv("DB_NAME", "flashlearn"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:       getEnv("JWT_SECRET", "flashlearn-dev-signing-key"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisChannel:    getEnv("REDIS_CHANNEL", "flashlearn:progress"),
		StatsCacheTTL:   ttl,
		StatsLocation:   loc,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		MockGenerator:   os.Getenv("MOCK_GENERATOR") == "true",
		CardsPerTopic:   perTopic,
	}

	if cfg.AnthropicAPIKey == "" && !cfg.MockGenerator {
		return nil, fmt.Errorf("config: ANTHROPIC_API_KEY is required unless MOCK_GENERATOR=true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
