package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  base_url: "https://api.example.com"
  timeout: 10
storage:
  driver: "redis"
  redis:
    addr: "redis.internal:6379"
    db: 2
session:
  coalesce_refresh: false
agent:
  profile_schedule: "*/10 * * * *"
mqtt:
  enabled: true
  broker:
    host: "broker.internal"
    port: 8883
  qos: 1
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Storage.Driver != DriverRedis || cfg.Storage.Redis.DB != 2 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Session.CoalesceRefresh {
		t.Error("Session.CoalesceRefresh should be false from file")
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}

	// Untouched sections keep defaults
	if cfg.Backend.RefreshPath != "/api/auth/refresh" {
		t.Errorf("Backend.RefreshPath = %q, want default", cfg.Backend.RefreshPath)
	}
	if cfg.OAuth.CallbackPath != "/oauth2/callback" {
		t.Errorf("OAuth.CallbackPath = %q, want default", cfg.OAuth.CallbackPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/console.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  base_url: "not a url"
storage:
  driver: "etcd"
`)
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"backend.base_url", "storage.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  base_url: "https://file.example.com"
storage:
  driver: "sqlite"
  path: "/var/lib/console/file.db"
`)
	t.Setenv("CONSOLE_BACKEND_URL", "https://env.example.com")
	t.Setenv("CONSOLE_STORAGE_PATH", "/tmp/env.db")
	t.Setenv("CONSOLE_STORAGE_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("CONSOLE_MQTT_USERNAME", "console")
	t.Setenv("CONSOLE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CONSOLE_COALESCE_REFRESH", "false")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.BaseURL != "https://env.example.com" {
		t.Errorf("Backend.BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Storage.Path != "/tmp/env.db" {
		t.Errorf("Storage.Path = %q, want env value", cfg.Storage.Path)
	}
	if cfg.Storage.EncryptionKey == "" {
		t.Error("Storage.EncryptionKey not read from env")
	}
	if cfg.MQTT.Auth.Username != "console" {
		t.Errorf("MQTT.Auth.Username = %q", cfg.MQTT.Auth.Username)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
	if cfg.Session.CoalesceRefresh {
		t.Error("Session.CoalesceRefresh should be overridden to false")
	}
}

func TestApplyEnvOverrides_UnsetKeepsValues(t *testing.T) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}
	if cfg.Backend.BaseURL != defaultConfig().Backend.BaseURL {
		t.Errorf("Backend.BaseURL changed to %q without env", cfg.Backend.BaseURL)
	}
}

func TestConfig_Validate(t *testing.T) {
	validKey := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory driver", func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.Path = "" }, false},
		{"sealed storage", func(c *Config) { c.Storage.EncryptionKey = validKey }, false},
		{"relative base url", func(c *Config) { c.Backend.BaseURL = "/api" }, true},
		{"ftp base url", func(c *Config) { c.Backend.BaseURL = "ftp://example.com" }, true},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, true},
		{"refresh path without slash", func(c *Config) { c.Backend.RefreshPath = "api/auth/refresh" }, true},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, true},
		{"redis without addr", func(c *Config) { c.Storage.Driver = DriverRedis; c.Storage.Redis.Addr = "" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "etcd" }, true},
		{"short encryption key", func(c *Config) { c.Storage.EncryptionKey = "short" }, true},
		{"bad schedule", func(c *Config) { c.Agent.ProfileSchedule = "every five minutes" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"enabled mqtt bad port", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Port = 0 }, true},
		{"enabled influx without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"callback path without slash", func(c *Config) { c.OAuth.CallbackPath = "cb" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath() = %q, want %q", got, DefaultPath)
	}

	t.Setenv(EnvConfigPath, "/etc/console.yaml")
	if got := ResolvePath(""); got != "/etc/console.yaml" {
		t.Errorf("ResolvePath() = %q, want env value", got)
	}
	if got := ResolvePath("./local.yaml"); got != "./local.yaml" {
		t.Errorf("ResolvePath() = %q, want explicit value", got)
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := defaultConfig()
	cfg.Backend.BaseURL = "https://api.example.com/"
	cfg.Backend.Timeout = 12
	cfg.OAuth.Timeout = 90

	if got := cfg.BackendURL("/api/auth/me"); got != "https://api.example.com/api/auth/me" {
		t.Errorf("BackendURL() = %q", got)
	}
	if got := cfg.GetBackendTimeout().Seconds(); got != 12 {
		t.Errorf("GetBackendTimeout() = %v, want 12", got)
	}
	if got := cfg.GetOAuthTimeout().Seconds(); got != 90 {
		t.Errorf("GetOAuthTimeout() = %v, want 90", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("defaultConfig Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if !cfg.Session.CoalesceRefresh {
		t.Error("defaultConfig should coalesce refreshes")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}
