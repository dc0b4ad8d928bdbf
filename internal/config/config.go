package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	SMTP      SMTPConfig
	SendGrid  SendGridConfig
	Notifier  NotifierConfig
	Reminder  ReminderConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Policies  PoliciesConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrateOnStart bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// Storage selects the repository backend: "postgres" or "memory".
	Storage string
	// DirectorySeedFile lists employees loaded into the memory directory.
	DirectorySeedFile string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type SendGridConfig struct {
	APIKey   string
	From     string
	FromName string
}

// NotifierConfig selects the email transport: "smtp", "sendgrid" or "log".
type NotifierConfig struct {
	Transport string
}

type ReminderConfig struct {
	// Schedule is a robfig/cron spec; empty disables the in-process scheduler.
	Schedule string
	Timezone string
	LockTTL  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	// Rate uses the ulule/limiter formatted notation, e.g. "100-M".
	Rate    string
	Enabled bool
}

type EventsConfig struct {
	WorkerCount int
	QueueSize   int
}

type PoliciesConfig struct {
	// File overrides the embedded default leave policies.
	File string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	} else if err != nil {
		slog.Debug("No .env file found, using process environment")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           dbPort,
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", ""),
		Name:           getEnv("DB_NAME", "leave-engine"),
		SSLMode:        getEnv("DB_SSL_MODE", "disable"),
		MaxConns:       int32(maxConns),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS"),
		Storage:        getEnv("STORAGE", "postgres"),

		DirectorySeedFile: getEnv("DIRECTORY_SEED_FILE", ""),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	config.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     smtpPort,
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "no-reply@localhost"),
		FromName: getEnv("SMTP_FROM_NAME", "HR Portal"),
	}

	config.SendGrid = SendGridConfig{
		APIKey:   getEnv("SENDGRID_API_KEY", ""),
		From:     getEnv("SENDGRID_FROM", config.SMTP.From),
		FromName: getEnv("SENDGRID_FROM_NAME", config.SMTP.FromName),
	}

	config.Notifier = NotifierConfig{
		Transport: getEnv("NOTIFIER_TRANSPORT", "smtp"),
	}

	lockTTL, err := time.ParseDuration(getEnv("REMINDER_LOCK_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_LOCK_TTL: %w", err)
	}
	config.Reminder = ReminderConfig{
		Schedule: getEnv("REMINDER_SCHEDULE", ""),
		Timezone: getEnv("REMINDER_TIMEZONE", "UTC"),
		LockTTL:  lockTTL,
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS"),
		Topic:   getEnv("KAFKA_TOPIC", "leave-events"),
	}

	config.RateLimit = RateLimitConfig{
		Rate:    getEnv("RATE_LIMIT", "300-M"),
		Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
	}

	workers, err := getEnvInt("EVENT_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	queueSize, err := getEnvInt("EVENT_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	config.Events = EventsConfig{WorkerCount: workers, QueueSize: queueSize}

	config.Policies = PoliciesConfig{
		File: getEnv("LEAVE_POLICIES_FILE", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Storage != "postgres" && c.App.Storage != "memory" {
		return fmt.Errorf("STORAGE must be postgres or memory, got %q", c.App.Storage)
	}
	if c.App.Storage == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.Notifier.Transport {
	case "smtp", "log":
	case "sendgrid":
		if c.SendGrid.APIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid transport")
		}
	default:
		return fmt.Errorf("NOTIFIER_TRANSPORT must be smtp, sendgrid or log, got %q", c.Notifier.Transport)
	}
	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Location returns the reminder time zone. Validate has already checked it.
func (c *ReminderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
