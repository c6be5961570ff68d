package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownDriver is returned when DB_DRIVER names an unsupported database.
var ErrUnknownDriver = errors.New("unknown database driver")

// Config holds every setting used by the geofix binaries.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig selects the portal database. The portal itself runs on a
// SQLite file; the reporting replica is PostgreSQL.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_connections"`
}

// GeocoderConfig describes the upstream text-search service.
type GeocoderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	CountryCode string        `yaml:"country_code"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
	CacheSize   int           `yaml:"cache_size"`
}

// SweepConfig controls candidate selection and reporting.
type SweepConfig struct {
	ProviderRole string `yaml:"provider_role"`
	ReportPath   string `yaml:"report_path"`
}

// ServerConfig contains HTTP server settings for the ops API.
type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     "./db/database.sqlite",
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Name:     "monolithe",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Geocoder: GeocoderConfig{
			BaseURL:     "https://nominatim.openstreetmap.org",
			CountryCode: "fr",
			UserAgent:   "MonolithePortal/1.0 (contact@monolithe.pro)",
			Timeout:     10 * time.Second,
			MinInterval: 1100 * time.Millisecond,
			CacheSize:   500,
		},
		Sweep: SweepConfig{
			ProviderRole: "ARTISAN",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8081,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "geofix",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when it does not exist), then environment variables.
func Load(path string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = GetEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = GetEnv("DB_PATH", c.Database.Path)
	c.Database.Host = GetEnv("DB_HOST", c.Database.Host)
	c.Database.Port = GetEnv("DB_PORT", c.Database.Port)
	c.Database.User = GetEnv("DB_USER", c.Database.User)
	c.Database.Password = GetEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = GetEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = GetEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = GetEnvInt("DB_MAX_CONNECTIONS", c.Database.MaxConns)

	c.Geocoder.BaseURL = GetEnv("GEOCODER_URL", c.Geocoder.BaseURL)
	c.Geocoder.CountryCode = GetEnv("GEOCODER_COUNTRY", c.Geocoder.CountryCode)
	c.Geocoder.UserAgent = GetEnv("GEOCODER_USER_AGENT", c.Geocoder.UserAgent)
	c.Geocoder.Timeout = GetEnvDuration("GEOCODER_TIMEOUT", c.Geocoder.Timeout)
	c.Geocoder.MinInterval = GetEnvDuration("GEOCODER_MIN_INTERVAL", c.Geocoder.MinInterval)
	c.Geocoder.CacheSize = GetEnvInt("GEOCODER_CACHE_SIZE", c.Geocoder.CacheSize)

	c.Sweep.ProviderRole = GetEnv("PROVIDER_ROLE", c.Sweep.ProviderRole)
	c.Sweep.ReportPath = GetEnv("REPORT_PATH", c.Sweep.ReportPath)

	c.Server.Host = GetEnv("WEB_HOST", c.Server.Host)
	c.Server.Port = GetEnvInt("WEB_PORT", c.Server.Port)
	c.Server.APIKey = GetEnv("API_KEY", c.Server.APIKey)

	c.Logging.Level = GetEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = GetEnv("LOG_FORMAT", c.Logging.Format)

	c.Tracing.Enabled = GetEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.ServiceName = GetEnv("TRACING_SERVICE_NAME", c.Tracing.ServiceName)
}

// Validate checks for settings that would make a sweep misbehave.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Geocoder.BaseURL == "" {
		return errors.New("GEOCODER_URL is required")
	}
	if c.Geocoder.UserAgent == "" {
		return errors.New("GEOCODER_USER_AGENT is required by the upstream usage policy")
	}
	if c.Geocoder.MinInterval < 0 {
		return errors.New("GEOCODER_MIN_INTERVAL must not be negative")
	}
	if c.Geocoder.Timeout <= 0 {
		return errors.New("GEOCODER_TIMEOUT must be positive")
	}
	if c.Sweep.ProviderRole == "" {
		return errors.New("PROVIDER_ROLE is required")
	}
	return nil
}
