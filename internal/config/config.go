package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Event broker backends.
const (
	EventsLocal = "local"
	EventsRedis = "redis"
)

// Config holds all provider configuration loaded from environment
// variables.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Events    EventsConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Slack     SlackConfig
	Seed      SeedConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL connection settings (used when the
// postgres backend is selected).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// EventsConfig selects the flag-event broker.
type EventsConfig struct {
	Backend string
}

// RedisConfig holds Redis connection settings (used when the redis event
// backend is selected).
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// WebhookConfig holds the webhook handler's latency contract.
type WebhookConfig struct {
	// Budget is the hard ceiling on handler latency. The design target is
	// 500ms typical; callers apply their own timeout on top.
	Budget time.Duration
}

// RateLimitConfig holds per-tenant rate limiting settings for the
// authenticated surface.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AuditConfig bounds in-memory audit retention.
type AuditConfig struct {
	Capacity int
}

// SlackConfig holds optional rollback notification settings.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// SeedConfig controls demo provisioning for local testing.
type SeedConfig struct {
	Demo bool
	// DemoAPIKey is the bearer credential seeded for the demo tenant.
	DemoAPIKey string //nolint:gosec // G117: local demo credential
}

// Load reads configuration from environment variables. Defaults are safe
// for local development only.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("PATHCANARY_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("PATHCANARY_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	budget, err := getEnvDuration("PATHCANARY_WEBHOOK_BUDGET", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbPort, err := getEnvInt("PATHCANARY_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("PATHCANARY_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("PATHCANARY_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("PATHCANARY_RATE_LIMIT_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("PATHCANARY_RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	auditCapacity, err := getEnvInt("PATHCANARY_AUDIT_CAPACITY", 1000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	seedDemo, err := getEnvBool("PATHCANARY_SEED_DEMO", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("PATHCANARY_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Store: StoreConfig{
			Backend: getEnv("PATHCANARY_STORE", StoreMemory),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PATHCANARY_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("PATHCANARY_DB_USER", "pathcanary"),
			Password: getEnv("PATHCANARY_DB_PASSWORD", ""),
			DBName:   getEnv("PATHCANARY_DB_NAME", "pathcanary_dev"),
			SSLMode:  getEnv("PATHCANARY_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Events: EventsConfig{
			Backend: getEnv("PATHCANARY_EVENTS", EventsLocal),
		},
		Redis: RedisConfig{
			Addr:     getEnv("PATHCANARY_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PATHCANARY_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Webhook: WebhookConfig{
			Budget: budget,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		Audit: AuditConfig{
			Capacity: auditCapacity,
		},
		Slack: SlackConfig{
			BotToken: getEnv("PATHCANARY_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("PATHCANARY_SLACK_CHANNEL", ""),
		},
		Seed: SeedConfig{
			Demo:       seedDemo,
			DemoAPIKey: getEnv("PATHCANARY_SEED_API_KEY", "pc_demo_4f8a2c913b7d6e05"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("PATHCANARY_SERVER_ADDR is required")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("PATHCANARY_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("PATHCANARY_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("PATHCANARY_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("PATHCANARY_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("PATHCANARY_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Backend)
	}

	switch c.Events.Backend {
	case EventsLocal:
	case EventsRedis:
		if c.Redis.Addr == "" {
			return errors.New("PATHCANARY_REDIS_ADDR is required when PATHCANARY_EVENTS=redis")
		}
	default:
		return fmt.Errorf("PATHCANARY_EVENTS must be %q or %q, got %q", EventsLocal, EventsRedis, c.Events.Backend)
	}

	if c.Webhook.Budget <= 0 {
		return fmt.Errorf("PATHCANARY_WEBHOOK_BUDGET must be positive, got %s", c.Webhook.Budget)
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("PATHCANARY_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("PATHCANARY_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}
	if c.Audit.Capacity < 1 {
		return fmt.Errorf("PATHCANARY_AUDIT_CAPACITY must be >= 1, got %d", c.Audit.Capacity)
	}

	// Slack notifications need both settings or neither.
	if (c.Slack.BotToken == "") != (c.Slack.Channel == "") {
		return errors.New("PATHCANARY_SLACK_BOT_TOKEN and PATHCANARY_SLACK_CHANNEL must be set together")
	}

	if c.Seed.Demo && len(c.Seed.DemoAPIKey) < 8 {
		return errors.New("PATHCANARY_SEED_API_KEY must be at least 8 characters")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
