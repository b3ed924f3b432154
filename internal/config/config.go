// Package config loads the process configuration from config.yaml and
// environment variables via viper. Call Load once at startup; Get returns the
// loaded instance everywhere else.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Email     EmailConfig     `mapstructure:"email"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds the connection settings for the backing store.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// DSN overrides the individual fields when set (required for sqlite).
	DSN string `mapstructure:"dsn"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig holds outbound SMTP settings.
type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds the SMTP server connection settings.
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	AuthType   string `mapstructure:"auth_type"`
	TLS        bool   `mapstructure:"tls"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

// SMSConfig holds the settings for the outbound SMS gateway.
type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	From       string `mapstructure:"from"`
}

// RunnerConfig holds background task settings.
type RunnerConfig struct {
	Reaper ReaperConfig `mapstructure:"reaper"`
}

// ReaperConfig controls the stale application reaper.
type ReaperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// AdmissionConfig controls the warm-up admission queue.
type AdmissionConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
}

// RedisConfig holds the optional cache used for runner status persistence.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

var (
	mu     sync.RWMutex
	loaded *Config
)

// Load reads configuration from the given file (optional) and the
// environment, applies defaults and stores the result for Get.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("auth.jwt.access_token_ttl", 8*time.Hour)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.auth_type", "plain")
	v.SetDefault("sms.enabled", false)
	v.SetDefault("runner.reaper.interval", time.Hour)
	v.SetDefault("runner.reaper.max_age", 24*time.Hour)
	v.SetDefault("admission.capacity", 100)
	v.SetDefault("admission.item_timeout", 30*time.Second)
	v.SetDefault("admission.drain_interval", 50*time.Millisecond)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")

	v.SetEnvPrefix("PERMITFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mu.Lock()
	loaded = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the loaded configuration, or nil before Load has run.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}

// Set replaces the loaded configuration. Used by tests.
func Set(cfg *Config) {
	mu.Lock()
	loaded = cfg
	mu.Unlock()
}
