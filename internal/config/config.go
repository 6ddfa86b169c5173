// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the environment variables read by Load.
const EnvPrefix = "WORKTRACK_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/worktrack/config.yaml",
}

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	DB        DBConfig        `koanf:"db"`
	Auth      AuthConfig      `koanf:"auth"`
	Logging   LoggingConfig   `koanf:"logging"`
	KPI       KPIConfig       `koanf:"kpi"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

type AppConfig struct {
	Env      string `koanf:"env" validate:"oneof=development staging production"`
	Timezone string `koanf:"timezone" validate:"required,timezone"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DBConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required"`
}

type LoggingConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type KPIConfig struct {
	// RequestsPerMinute limits report generation per organization over HTTP.
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=1"`
	Burst             int `koanf:"burst" validate:"min=1"`
}

type SchedulerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	RunHour       int           `koanf:"run_hour" validate:"min=0,max=23"`
	Concurrency   int           `koanf:"concurrency" validate:"min=1"`
	OrgTimeout    time.Duration `koanf:"org_timeout" validate:"gt=0"`
	Daily         bool          `koanf:"daily"`
	Weekly        bool          `koanf:"weekly"`
	Monthly       bool          `koanf:"monthly"`
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "development",
			Timezone: "UTC",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Host:            "127.0.0.1",
			Port:            3306,
			User:            "worktrack",
			Name:            "worktrack",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		KPI: KPIConfig{
			RequestsPerMinute: 30,
			Burst:             5,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			RunHour:       6,
			Concurrency:   4,
			OrgTimeout:    2 * time.Minute,
			Daily:         true,
			Weekly:        true,
			Monthly:       true,
			CheckInterval: time.Minute,
		},
	}
}

// Load reads .env (if present), then defaults, the config file and WORKTRACK_* variables.
func Load() (*Config, error) {
	// .env is optional outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps WORKTRACK_DB_MAX_OPEN_CONNS to db.max_open_conns: the first
// segment after the prefix names the section.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// Location returns the application timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the service runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
