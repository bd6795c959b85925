package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "CONSOLE_CONFIG"

// DefaultPath is used when neither a flag nor EnvConfigPath names a file.
const DefaultPath = "configs/console.yaml"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the root configuration structure for the admin console.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Agent    AgentConfig    `yaml:"agent"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig locates the REST backend and its auth endpoints.
type BackendConfig struct {
	BaseURL      string `yaml:"base_url" env:"CONSOLE_BACKEND_URL"`
	Timeout      int    `yaml:"timeout" env:"CONSOLE_BACKEND_TIMEOUT"` // seconds
	LoginPath    string `yaml:"login_path"`
	RegisterPath string `yaml:"register_path"`
	RefreshPath  string `yaml:"refresh_path"`
	MePath       string `yaml:"me_path"`
}

// StorageConfig selects and configures durable session storage.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"CONSOLE_STORAGE_DRIVER"`
	Path        string `yaml:"path" env:"CONSOLE_STORAGE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	Redis RedisConfig `yaml:"redis"`

	// EncryptionKey seals stored values when set. Prefer the environment
	// variable over the file.
	EncryptionKey string `yaml:"encryption_key" env:"CONSOLE_STORAGE_KEY"`
}

// RedisConfig contains Redis connection settings for the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"CONSOLE_REDIS_ADDR"`
	Password string `yaml:"password" env:"CONSOLE_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SessionConfig tunes the refresh protocol.
type SessionConfig struct {
	CoalesceRefresh bool   `yaml:"coalesce_refresh" env:"CONSOLE_COALESCE_REFRESH"`
	LoginURL        string `yaml:"login_url"`
}

// OAuthConfig configures the loopback OAuth callback receiver.
type OAuthConfig struct {
	Listen       string `yaml:"listen" env:"CONSOLE_OAUTH_LISTEN"`
	CallbackPath string `yaml:"callback_path"`
	Provider     string `yaml:"provider"`
	Timeout      int    `yaml:"timeout"` // seconds
}

// AgentConfig configures the long-running session agent.
type AgentConfig struct {
	Listen          string `yaml:"listen" env:"CONSOLE_AGENT_LISTEN"`
	ProfileSchedule string `yaml:"profile_schedule"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"CONSOLE_MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"CONSOLE_MQTT_HOST"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"CONSOLE_MQTT_USERNAME"`
	Password string `yaml:"password" env:"CONSOLE_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"CONSOLE_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"CONSOLE_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"CONSOLE_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CONSOLE_LOG_LEVEL"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ResolvePath picks the configuration file: an explicit path wins, then
// EnvConfigPath, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern CONSOLE_SECTION_KEY, declared by
// the env tags on each field. For example: CONSOLE_BACKEND_URL, CONSOLE_STORAGE_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      30,
			LoginPath:    "/api/auth/login",
			RegisterPath: "/api/auth/register",
			RefreshPath:  "/api/auth/refresh",
			MePath:       "/api/auth/me",
		},
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			Path:        "./data/console.db",
			WALMode:     true,
			BusyTimeout: 5,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "console:session:",
			},
		},
		Session: SessionConfig{
			CoalesceRefresh: true,
			LoginURL:        "/login",
		},
		OAuth: OAuthConfig{
			Listen:       "127.0.0.1:8765",
			CallbackPath: "/oauth2/callback",
			Provider:     "google",
			Timeout:      300,
		},
		Agent: AgentConfig{
			Listen:          "127.0.0.1:9464",
			ProfileSchedule: "@every 5m",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "admin-console",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "admin-console",
			Bucket:        "console",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Only variables that are set replace file values.
func applyEnvOverrides(cfg *Config) error {
	return cleanenv.ReadEnv(cfg)
}

// Validate checks the configuration for errors.
// All problems are reported together.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Backend validation
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "backend.base_url must be an absolute http(s) URL")
	}
	if c.Backend.Timeout < 1 {
		errs = append(errs, "backend.timeout must be at least 1 second")
	}
	for name, p := range map[string]string{
		"backend.login_path":   c.Backend.LoginPath,
		"backend.refresh_path": c.Backend.RefreshPath,
		"backend.me_path":      c.Backend.MePath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, name+" must start with /")
		}
	}

	// Storage validation
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, "storage.redis.addr is required for the redis driver")
		}
	default:
		errs = append(errs, "storage.driver must be memory, sqlite, or redis")
	}
	const minKeyLength = 32
	if c.Storage.EncryptionKey != "" && len(c.Storage.EncryptionKey) < minKeyLength {
		errs = append(errs, "storage.encryption_key must be at least 32 characters")
	}

	// OAuth validation
	if !strings.HasPrefix(c.OAuth.CallbackPath, "/") {
		errs = append(errs, "oauth.callback_path must start with /")
	}

	// Agent validation
	if _, err := cron.ParseStandard(c.Agent.ProfileSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("agent.profile_schedule is invalid: %v", err))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetBackendTimeout returns the backend request timeout as a Duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

// GetOAuthTimeout returns how long to wait for the OAuth callback.
func (c *Config) GetOAuthTimeout() time.Duration {
	return time.Duration(c.OAuth.Timeout) * time.Second
}

// BackendURL joins the backend base URL with an endpoint path.
func (c *Config) BackendURL(path string) string {
	return strings.TrimSuffix(c.Backend.BaseURL, "/") + path
}
