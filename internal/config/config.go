package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP server
	ServerHost string
	ServerPort string

	// Postgres
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// SMTP transport
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string

	// Reminder delivery
	ReminderFrom    string
	ReminderTo      string // default recipient when a user has no resolvable address
	ReminderSubject string
	ReminderText    string
	ReminderCron    string
	Timezone        string
	SendTestOnStart bool

	// Identity provider (user email lookup)
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string

	// Kafka book-change feed
	KafkaURL        string
	BooksKafkaTopic string

	// AWS trigger plumbing
	AWSRegion                 string
	AWSEndpoint               string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	SQSReminderTriggerURL     string
	SQSReminderTriggerARN     string
	SchedulerRoleARN          string
	SchedulerGroupName        string
	SchedulerBootstrapEnabled bool

	// Dispatch tuning
	DispatchConcurrency int
	DeliveryTimeout     time.Duration

	// Derived at Validate time
	Location *time.Location
}

// LoadEnv loads environment variables from .env files
func LoadEnv() {
	envPaths := []string{
		".env",    // Current directory
		"../.env", // One level up
		filepath.Join(os.Getenv("HOME"), "projects/booktracker/ms-reminders/.env"),
	}

	for _, path := range envPaths {
		err := godotenv.Load(path)
		if err == nil {
			log.Printf("Loaded environment variables from %s", path)
			return
		}
	}

	log.Println("No .env file found, using environment variables")
}

func Load() Config {
	// Load environment variables from .env file first
	LoadEnv()

	log.Println("Loading configuration from environment variables")
	cfg := Config{
		ServerHost: getEnv("SERVER_HOST", ""),
		ServerPort: getEnv("SERVER_PORT", "8085"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "booktracker"),
		PostgresPassword: getSecretEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "booktracker"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SMTPHost: getEnv("SMTP_HOST", "smtp.qq.com"),
		SMTPPort: getEnv("SMTP_PORT", "465"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getSecretEnv("SMTP_PASS", ""),

		ReminderFrom:    getEnv("REMINDER_FROM", ""),
		ReminderTo:      getEnv("REMINDER_TO", ""),
		ReminderSubject: getEnv("REMINDER_SUBJECT", "阅读提醒"),
		ReminderText:    getEnv("REMINDER_TEXT", "该阅读啦！"),
		ReminderCron:    getEnv("REMINDER_CRON", "0 9 * * *"),
		Timezone:        getEnv("REMINDER_TIMEZONE", "Asia/Shanghai"),
		SendTestOnStart: getEnv("SEND_TEST_ON_START", "false") == "true",

		KeycloakURL:   getEnv("KEYCLOAK_URL", ""),
		KeycloakRealm: getEnv("KEYCLOAK_REALM", "booktracker"),
		ClientID:      getEnv("KEYCLOAK_CLIENT_ID", "reminder-service-client"),
		ClientSecret:  getSecretEnv("REMINDER_CLIENT_SECRET", ""),

		KafkaURL:        getEnv("KAFKA_URL", ""),
		BooksKafkaTopic: getEnv("BOOKS_KAFKA_TOPIC", ""),

		AWSRegion:             getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpoint:           getEnv("AWS_LOCAL_ENDPOINT_URL", ""),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getSecretEnv("AWS_SECRET_ACCESS_KEY", ""),
		SQSReminderTriggerURL: getEnv("AWS_SQS_REMINDER_TRIGGER_URL", ""),
		SQSReminderTriggerARN: getEnv("AWS_SQS_REMINDER_TRIGGER_QUEUE_ARN", ""),
		SchedulerRoleARN:      getEnv("AWS_SCHEDULER_ROLE_ARN", ""),
		SchedulerGroupName:    getEnv("AWS_SCHEDULER_GROUP_NAME", "default"),

		DispatchConcurrency: getIntEnv("DISPATCH_CONCURRENCY", 4),
		DeliveryTimeout:     time.Duration(getIntEnv("DELIVERY_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	// From/To fall back to the SMTP account, matching the legacy scheduler.
	if cfg.ReminderFrom == "" {
		cfg.ReminderFrom = cfg.SMTPUser
	}
	if cfg.ReminderTo == "" {
		cfg.ReminderTo = cfg.SMTPUser
	}
	cfg.SchedulerBootstrapEnabled = cfg.SQSReminderTriggerARN != "" && cfg.SchedulerRoleARN != ""

	return cfg
}

// Validate checks the settings that must refuse startup when wrong: the
// transport credentials, the cadence expression, the time zone, and the
// dispatch bounds. The process must not run degraded on any of these.
func (c *Config) Validate() error {
	if c.SMTPUser == "" || c.SMTPPass == "" {
		return fmt.Errorf("missing SMTP credentials: set SMTP_USER and SMTP_PASS")
	}

	if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
		return fmt.Errorf("invalid REMINDER_CRON expression %q: %w", c.ReminderCron, err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.DispatchConcurrency)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT_SECONDS must be positive, got %s", c.DeliveryTimeout)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		log.Printf("Loaded env var %s: %s", key, value)
		return value
	}
	log.Printf("Env var %s not set, using fallback: %s", key, fallback)
	return fallback
}

// getSecretEnv behaves like getEnv but never logs the value.
func getSecretEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		log.Printf("Loaded env var %s: <redacted>", key)
		return value
	}
	log.Printf("Env var %s not set, using fallback", key)
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		log.Printf("Env var %s not set, using fallback: %d", key, fallback)
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Env var %s has non-numeric value %q, using fallback: %d", key, raw, fallback)
		return fallback
	}
	log.Printf("Loaded env var %s: %d", key, value)
	return value
}
