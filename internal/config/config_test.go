package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"COMMS_URL", "SERVICE_NAME",
	"HELPER_SUBJECT", "BRIDGE_SUBJECT", "RESULT_SUBJECT",
	"PERMISSION_PROMPT_SUBJECT", "PERMISSION_RESULT_SUBJECT", "CHANGE_SUBJECT", "EVENT_SUBJECT",
	"REQUEST_TIMEOUT", "CORRELATION_TIMEOUT", "USER_ID", "PLATFORM_VERSION", "RULES_FILE",
	"EVENT_POLICY", "EVENT_QUEUE_SIZE", "HELPER_SHELL",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envVars {
		if v, ok := os.LookupEnv(env); ok {
			t.Cleanup(func() { os.Setenv(env, v) })
		}
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.COMMSName != "rootbridge" {
		t.Errorf("config:config_test - COMMSName = %q, want rootbridge", cfg.COMMSName)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
	if cfg.CorrelationTimeout != 0 {
		t.Errorf("config:config_test - CorrelationTimeout = %v, want 0", cfg.CorrelationTimeout)
	}
	if cfg.EventPolicy != "latest" || cfg.EventQueueSize != 16 {
		t.Errorf("config:config_test - EventPolicy=%q EventQueueSize=%d", cfg.EventPolicy, cfg.EventQueueSize)
	}
	if cfg.HelperShell != "su" {
		t.Errorf("config:config_test - HelperShell = %q, want su", cfg.HelperShell)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.MigrationPath != "migrations" || cfg.RunMigrations {
		t.Errorf("config:config_test - MigrationPath=%q RunMigrations=%v", cfg.MigrationPath, cfg.RunMigrations)
	}
	if cfg.HTTPPort != 8080 || cfg.HealthCheckTimeout != 5*time.Second || cfg.LogLevel != "info" {
		t.Errorf("config:config_test - HTTPPort=%d HealthCheckTimeout=%v LogLevel=%q", cfg.HTTPPort, cfg.HealthCheckTimeout, cfg.LogLevel)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate for serve: %v", err)
	}
	if err := cfg.ValidateForHelper(); err != nil {
		t.Errorf("config:config_test - defaults should validate for helper: %v", err)
	}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - ValidateForDB should require DATABASE_URL")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("USER_ID", "10")
	t.Setenv("PLATFORM_VERSION", "34")
	t.Setenv("CORRELATION_TIMEOUT", "2m")
	t.Setenv("EVENT_POLICY", "queued")
	t.Setenv("HELPER_SUBJECT", "custom.helper")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if cfg.UserID != 10 || cfg.PlatformVersion != "34" || cfg.CorrelationTimeout != 2*time.Minute {
		t.Errorf("config:config_test - got %+v", cfg)
	}
	if cfg.HelperSubjectOrDefault() != "custom.helper" {
		t.Errorf("config:config_test - HelperSubjectOrDefault = %q", cfg.HelperSubjectOrDefault())
	}
	if cfg.BridgeSubjectOrDefault() != "rootbridge.bridge.v1.u10" {
		t.Errorf("config:config_test - BridgeSubjectOrDefault = %q", cfg.BridgeSubjectOrDefault())
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid REQUEST_TIMEOUT")
	}
}

func TestValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{
			COMMSURL:           "nats://x",
			RequestTimeout:     time.Second,
			HealthCheckTimeout: time.Second,
			EventPolicy:        "latest",
			EventQueueSize:     1,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no url", func(c *Config) { c.COMMSURL = "" }, "COMMS_URL"},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
		{"negative correlation timeout", func(c *Config) { c.CorrelationTimeout = -time.Second }, "CORRELATION_TIMEOUT"},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, "HEALTH_CHECK_TIMEOUT"},
		{"negative user", func(c *Config) { c.UserID = -1 }, "USER_ID"},
		{"bad policy", func(c *Config) { c.EventPolicy = "fifo-ish" }, "EVENT_POLICY"},
		{"empty queue", func(c *Config) { c.EventQueueSize = 0 }, "EVENT_QUEUE_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.ValidateForServe()
			if tt.want == "" {
				if err != nil {
					t.Errorf("config:config_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("config:config_test - err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	if Subject("", "a") != "a" || Subject("b", "a") != "b" {
		t.Error("config:config_test - Subject override precedence wrong")
	}
}
