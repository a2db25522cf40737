// Package config provides bridge and helper configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/events"
)

const logPrefix = "config:LoadConfig"

// Config holds rootbridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"rootbridge"`

	// Subject overrides (empty = defaults; helper and bridge subjects are scoped to USER_ID)
	HelperSubject           string `envconfig:"HELPER_SUBJECT"`
	BridgeSubject           string `envconfig:"BRIDGE_SUBJECT"`
	ResultSubject           string `envconfig:"RESULT_SUBJECT"`
	PermissionPromptSubject string `envconfig:"PERMISSION_PROMPT_SUBJECT"`
	PermissionResultSubject string `envconfig:"PERMISSION_RESULT_SUBJECT"`
	ChangeSubject           string `envconfig:"CHANGE_SUBJECT"`
	EventSubject            string `envconfig:"EVENT_SUBJECT"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`
	// CorrelationTimeout resolves unanswered tokens with a timeout; 0 waits forever.
	CorrelationTimeout time.Duration `envconfig:"CORRELATION_TIMEOUT" default:"0s"`

	// Platform
	UserID          int    `envconfig:"USER_ID" default:"0"`
	PlatformVersion string `envconfig:"PLATFORM_VERSION"`

	// Permission rules
	RulesFile string `envconfig:"RULES_FILE"`

	// View events
	EventPolicy    string `envconfig:"EVENT_POLICY" default:"latest"`
	EventQueueSize int    `envconfig:"EVENT_QUEUE_SIZE" default:"16"`

	// Helper
	HelperShell string `envconfig:"HELPER_SHELL" default:"su"`

	// Database (empty DATABASE_URL disables the launch journal)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.CorrelationTimeout < 0 {
		return fmt.Errorf("%s - CORRELATION_TIMEOUT must not be negative", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.UserID < 0 {
		return fmt.Errorf("%s - USER_ID must not be negative", logPrefix)
	}
	if _, err := events.ParsePolicy(c.EventPolicy); err != nil {
		return fmt.Errorf("%s - EVENT_POLICY: %w", logPrefix, err)
	}
	if c.EventQueueSize < 1 {
		return fmt.Errorf("%s - EVENT_QUEUE_SIZE must be at least 1", logPrefix)
	}
	return nil
}

// ValidateForHelper checks required config when running the privileged helper.
func (c *Config) ValidateForHelper() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for helper", logPrefix)
	}
	if c.HelperShell == "" {
		return fmt.Errorf("%s - HELPER_SHELL is required for helper", logPrefix)
	}
	if c.UserID < 0 {
		return fmt.Errorf("%s - USER_ID must not be negative", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, history).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// HelperSubjectOrDefault returns HELPER_SUBJECT or the user-scoped default.
func (c *Config) HelperSubjectOrDefault() string {
	if c.HelperSubject != "" {
		return c.HelperSubject
	}
	return commsutil.BuildUserSubject(commsutil.SubjectHelper, c.UserID)
}

// BridgeSubjectOrDefault returns BRIDGE_SUBJECT or the user-scoped default.
func (c *Config) BridgeSubjectOrDefault() string {
	if c.BridgeSubject != "" {
		return c.BridgeSubject
	}
	return commsutil.BuildUserSubject(commsutil.SubjectBridge, c.UserID)
}

// Subject returns override when set, otherwise def.
func Subject(override, def string) string {
	if override != "" {
		return override
	}
	return def
}
