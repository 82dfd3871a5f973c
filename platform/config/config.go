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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for the SMTP delivery provider adapter.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSequenceTickInterval() time.Duration
	GetNoResponseQuietPeriod() time.Duration
}

// EnrichmentConfig provides settings for the external enrichment collaborator.
type EnrichmentConfig interface {
	GetEnrichmentAPIURL() string
	GetEnrichmentAPIKey() string
	IsEnrichmentEnabled() bool
}

// ClassifierConfig provides settings for the reply sentiment classifier.
type ClassifierConfig interface {
	GetGeminiAPIKey() string
	GetClassifierModel() string
	IsClassifierEnabled() bool
}

// WebhookConfig provides settings for provider webhook ingestion.
type WebhookConfig interface {
	GetWebhookAPIKey() string
}

// PausePolicy controls what happens to already-composed but not-yet-sent
// messages when a campaign is paused.
type PausePolicy string

const (
	// PausePolicyDefer leaves pending sends scheduled; they resume when the
	// campaign re-activates.
	PausePolicyDefer PausePolicy = "defer"
	// PausePolicyCancel marks pending sends cancelled on pause.
	PausePolicyCancel PausePolicy = "cancel"
)

// CampaignPolicyConfig provides campaign lifecycle policy knobs.
type CampaignPolicyConfig interface {
	GetPausePolicy() PausePolicy
	GetAutoApproveSends() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	SequenceTickInterval time.Duration
	NoResponseQuiet      time.Duration
	EnrichmentAPIURL     string
	EnrichmentAPIKey     string
	GeminiAPIKey         string
	ClassifierModel      string
	WebhookAPIKey        string
	PausePolicy          PausePolicy
	AutoApproveSends     bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                    { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool              { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string               { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                { return c.AsynqConcurrency }
func (c *Config) GetSequenceTickInterval() time.Duration  { return c.SequenceTickInterval }
func (c *Config) GetNoResponseQuietPeriod() time.Duration { return c.NoResponseQuiet }

// EnrichmentConfig implementation
func (c *Config) GetEnrichmentAPIURL() string { return c.EnrichmentAPIURL }
func (c *Config) GetEnrichmentAPIKey() string { return c.EnrichmentAPIKey }
func (c *Config) IsEnrichmentEnabled() bool   { return c.EnrichmentAPIURL != "" }

// ClassifierConfig implementation
func (c *Config) GetGeminiAPIKey() string    { return c.GeminiAPIKey }
func (c *Config) GetClassifierModel() string { return c.ClassifierModel }
func (c *Config) IsClassifierEnabled() bool  { return c.GeminiAPIKey != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookAPIKey() string { return c.WebhookAPIKey }

// CampaignPolicyConfig implementation
func (c *Config) GetPausePolicy() PausePolicy { return c.PausePolicy }
func (c *Config) GetAutoApproveSends() bool   { return c.AutoApproveSends }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		EmailEnabled:         emailEnabled && smtpHost != "",
		SMTPHost:             smtpHost,
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Leadflow"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SequenceTickInterval: mustDuration(getEnv("SEQUENCE_TICK_INTERVAL", "1m")),
		NoResponseQuiet:      mustDuration(getEnv("NO_RESPONSE_QUIET_PERIOD", "96h")),
		EnrichmentAPIURL:     getEnv("ENRICHMENT_API_URL", ""),
		EnrichmentAPIKey:     getEnv("ENRICHMENT_API_KEY", ""),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		ClassifierModel:      getEnv("CLASSIFIER_MODEL", "gemini-2.0-flash"),
		WebhookAPIKey:        getEnv("WEBHOOK_API_KEY", ""),
		PausePolicy:          parsePausePolicy(getEnv("CAMPAIGN_PAUSE_POLICY", "defer")),
		AutoApproveSends:     strings.EqualFold(getEnv("EMAIL_AUTO_APPROVE", "false"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
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

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parsePausePolicy(value string) PausePolicy {
	if strings.EqualFold(strings.TrimSpace(value), string(PausePolicyCancel)) {
		return PausePolicyCancel
	}
	return PausePolicyDefer
}
