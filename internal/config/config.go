package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	Remote        RemoteConfig        `yaml:"remote"`
	Auth          AuthConfig          `yaml:"auth"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port       string `yaml:"port"`
	Mode       string `yaml:"mode"` // debug/release
	CORSOrigin string `yaml:"cors_origin"`
}

// CacheConfig represents the local durable cache configuration
type CacheConfig struct {
	Backend  string `yaml:"backend"` // sqlite/redis/memory
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

// RemoteConfig represents the remote store gateway configuration
type RemoteConfig struct {
	Mode        string `yaml:"mode"` // supabase/postgres/memory
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	DatabaseURL string `yaml:"database_url"`
	Timeout     string `yaml:"timeout"`
}

// AuthConfig represents session token configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTL      string `yaml:"token_ttl"`
	AdminPassword string `yaml:"admin_password"` // seeds the first admins row
}

// SyncConfig represents reconciliation and background job configuration
type SyncConfig struct {
	ReconcileInterval   string  `yaml:"reconcile_interval"`    // Cron expression
	DomainCheckInterval string  `yaml:"domain_check_interval"` // Cron expression
	ReplayRate          float64 `yaml:"replay_rate"`           // replayed writes per second
	ReplayBurst         int     `yaml:"replay_burst"`
	ActivityLimit       int     `yaml:"activity_limit"`
}

// NotificationsConfig represents notification configuration
type NotificationsConfig struct {
	AdminEmail string         `yaml:"admin_email"`
	AlertDays  []int          `yaml:"alert_days"`
	Email      EmailConfig    `yaml:"email"`
	Webhook    WebhookConfig  `yaml:"webhook"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

// EmailConfig represents email notification configuration
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	Password string   `yaml:"password"`
	To       []string `yaml:"to"`
}

// WebhookConfig represents webhook notification configuration
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// TelegramConfig represents Telegram notification configuration
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	Proxy    string `yaml:"proxy"` // optional SOCKS5 address, e.g. 127.0.0.1:7890
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text/json
}

// LoadConfig loads configuration from a YAML file, then applies .env and
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration suitable for local development
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Port, "8080")
	setDefault(&c.Server.Mode, "debug")
	setDefault(&c.Server.CORSOrigin, "*")

	setDefault(&c.Cache.Backend, "sqlite")
	setDefault(&c.Cache.Path, "data/cache.db")
	setDefault(&c.Cache.Prefix, "portfolio:")

	setDefault(&c.Remote.Mode, "supabase")
	setDefault(&c.Remote.Timeout, "15s")

	setDefault(&c.Auth.TokenTTL, "168h")

	setDefault(&c.Sync.ReconcileInterval, "*/1 * * * *")
	setDefault(&c.Sync.DomainCheckInterval, "0 3 * * *")
	if c.Sync.ReplayRate <= 0 {
		c.Sync.ReplayRate = 5
	}
	if c.Sync.ReplayBurst <= 0 {
		c.Sync.ReplayBurst = 1
	}
	if c.Sync.ActivityLimit <= 0 {
		c.Sync.ActivityLimit = 500
	}

	setDefault(&c.Notifications.AdminEmail, "admin@portfolio.local")
	if len(c.Notifications.AlertDays) == 0 {
		c.Notifications.AlertDays = []int{30, 7, 1}
	}

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "text")
}

func (c *Config) applyEnv() {
	overrideFromEnv(&c.Server.Port, "PORT")
	overrideFromEnv(&c.Remote.URL, "SUPABASE_URL")
	overrideFromEnv(&c.Remote.APIKey, "SUPABASE_ANON_KEY")
	overrideFromEnv(&c.Remote.DatabaseURL, "DATABASE_URL")
	overrideFromEnv(&c.Cache.RedisURL, "REDIS_URL")
	overrideFromEnv(&c.Auth.JWTSecret, "JWT_SECRET")
	overrideFromEnv(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	overrideFromEnv(&c.Notifications.Email.Password, "SMTP_PASSWORD")
	overrideFromEnv(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overrideFromEnv(&c.Logging.Level, "LOG_LEVEL")
}

// Validate checks the configuration for unsupported values
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	switch c.Remote.Mode {
	case "supabase":
		if c.Remote.URL == "" || c.Remote.APIKey == "" {
			return fmt.Errorf("remote.url and remote.api_key are required for supabase mode")
		}
	case "postgres":
		if c.Remote.DatabaseURL == "" {
			return fmt.Errorf("remote.database_url is required for postgres mode")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported remote mode: %s", c.Remote.Mode)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
		return fmt.Errorf("invalid auth.token_ttl: %w", err)
	}
	return nil
}

// RemoteTimeout returns the parsed remote timeout, falling back to 15s
func (c *Config) RemoteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Remote.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// TokenTTL returns the parsed session token lifetime
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func overrideFromEnv(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}
