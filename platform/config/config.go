// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq-backed run orchestrator.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SecretsConfig provides settings for the secret store.
type SecretsConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetSecretProject() string
	GetSecretStage() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// ReconConfig provides settings for the reconciliation pipelines.
type ReconConfig interface {
	GetReconEnabled() string
	GetAppianIgnoredStates() string
	GetMMDLIgnoredStates() string
	GetAlertSubdomain() string
	GetIterationBudget() int
	GetIterationDelay() time.Duration
	GetReportRecipient() string
}

// DispatcherConfig provides settings for the change-feed dispatcher.
type DispatcherConfig interface {
	GetDispatchInterval() time.Duration
	GetDispatchBatchSize() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
}

// Config holds all application configuration, loaded once at startup.
// Business logic never reads the environment directly; it receives this
// struct (or one of the narrow interfaces above) at wiring time.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	SecretProject      string
	SecretStage        string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	EmailFromName      string
	EmailFromAddress   string
	ReconEnabled       string
	AppianIgnoredStates string
	MMDLIgnoredStates  string
	AlertSubdomain     string
	IterationBudget    int
	IterationDelay     time.Duration
	ReportRecipient    string
	DispatchInterval   time.Duration
	DispatchBatchSize  int
	CORSOrigins        []string
}

// Load reads configuration from the environment (and .env, when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:    boolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "reconciliation"),
		AsynqConcurrency:    intEnv("ASYNQ_CONCURRENCY", 10),
		SecretProject:       getEnv("SECRET_PROJECT", "seatool-alerts"),
		SecretStage:         getEnv("SECRET_STAGE", getEnv("APP_ENV", "development")),
		EmailEnabled:        boolEnv("EMAIL_ENABLED", true),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            intEnv("SMTP_PORT", 587),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "SEATool Alerts"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		ReconEnabled:        getEnv("RECONCILIATION_ENABLED", ""),
		AppianIgnoredStates: getEnv("APPIAN_IGNORED_STATES", ""),
		MMDLIgnoredStates:   getEnv("MMDL_IGNORED_STATES", ""),
		AlertSubdomain:      getEnv("ALERT_SUBDOMAIN", ""),
		IterationBudget:     intEnv("ITERATION_BUDGET", 12),
		IterationDelay:      durationEnv("ITERATION_DELAY", time.Hour),
		ReportRecipient:     getEnv("REPORT_RECIPIENT", ""),
		DispatchInterval:    durationEnv("DISPATCH_INTERVAL", 2*time.Second),
		DispatchBatchSize:   intEnv("DISPATCH_BATCH_SIZE", 50),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is true")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	return cfg, nil
}

// ---- interface implementations ----

func (c *Config) GetDatabaseURL() string          { return c.DatabaseURL }
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetSecretProject() string        { return c.SecretProject }
func (c *Config) GetSecretStage() string          { return c.SecretStage }
func (c *Config) GetEmailEnabled() bool           { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string             { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string         { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string         { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string        { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string     { return c.EmailFromAddress }
func (c *Config) GetReconEnabled() string         { return c.ReconEnabled }
func (c *Config) GetAppianIgnoredStates() string  { return c.AppianIgnoredStates }
func (c *Config) GetMMDLIgnoredStates() string    { return c.MMDLIgnoredStates }
func (c *Config) GetAlertSubdomain() string       { return c.AlertSubdomain }
func (c *Config) GetIterationBudget() int         { return c.IterationBudget }
func (c *Config) GetIterationDelay() time.Duration { return c.IterationDelay }
func (c *Config) GetReportRecipient() string      { return c.ReportRecipient }
func (c *Config) GetDispatchInterval() time.Duration { return c.DispatchInterval }
func (c *Config) GetDispatchBatchSize() int       { return c.DispatchBatchSize }
func (c *Config) GetHTTPAddr() string             { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string        { return c.CORSOrigins }

// ---- helpers ----

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func intEnv(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
