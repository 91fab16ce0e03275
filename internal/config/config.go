// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix prefixes every environment override. Double underscores
// separate sections, e.g. TICKETWATCH_DATABASE__URL maps to database.url
// and TICKETWATCH_NOTIFY__EMAIL__SMTP_HOST to notify.email.smtp_host.
const envPrefix = "TICKETWATCH_"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	CORS     CORSConfig     `koanf:"cors"`
	Notify   NotifyConfig   `koanf:"notify"`
	SLA      SLAConfig      `koanf:"sla"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	Migrate         bool          `koanf:"migrate"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// NotifyConfig contains notification settings.
type NotifyConfig struct {
	// Origin is the UI origin used to build ticket deep links.
	Origin string      `koanf:"origin" validate:"required,url"`
	Source string      `koanf:"source"`
	Email  EmailConfig `koanf:"email"`
	Push   PushConfig  `koanf:"push"`
	SMS    SMSConfig   `koanf:"sms"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
}

// PushConfig contains push delivery settings.
type PushConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	ServerKey string `koanf:"server_key"`
}

// SMSConfig contains SMS delivery settings. SMS is optional; when disabled
// the channel degrades to a silent skip.
type SMSConfig struct {
	Enabled    bool    `koanf:"enabled"`
	APIBase    string  `koanf:"api_base"`
	AccountSID string  `koanf:"account_sid"`
	AuthToken  string  `koanf:"auth_token"`
	From       string  `koanf:"from"`
	RateLimit  float64 `koanf:"rate_limit"`
}

// SLAConfig contains SLA sweep settings.
type SLAConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Lookahead     time.Duration `koanf:"lookahead"`
	PageSize      int           `koanf:"page_size"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			Migrate:         true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Notify: NotifyConfig{
			Origin: "https://lakeridepros.xyz",
			Source: "LRP",
		},
		SLA: SLAConfig{
			SweepInterval: time.Hour,
			Lookahead:     time.Hour,
			PageSize:      100,
		},
	}
}

// Load reads configuration from the optional YAML file at path, applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
