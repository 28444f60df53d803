package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Model      ModelConfig      `yaml:"model"`
	Adjustment AdjustmentConfig `yaml:"adjustment"`
	Log        LogConfig        `yaml:"log"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	Path       string `yaml:"path"`
	Migrations string `yaml:"migrations"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// ModelConfig points at the Ollama server that writes plans.
type ModelConfig struct {
	URL         string        `yaml:"url"`
	Name        string        `yaml:"name"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// AdjustmentConfig tunes the background prescription adjuster.
type AdjustmentConfig struct {
	Window    int           `yaml:"window"`
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names
// fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. Env vars use the prefix FREECOACH_ and underscore-separated paths:
//
//	FREECOACH_SERVER_HOST, FREECOACH_SERVER_PORT,
//	FREECOACH_DB_DRIVER, FREECOACH_DB_HOST, FREECOACH_DB_PORT, FREECOACH_DB_NAME,
//	FREECOACH_DB_USER, FREECOACH_DB_PASSWORD, FREECOACH_DB_SSLMODE, FREECOACH_DB_PATH,
//	FREECOACH_AUTH_API_KEY,
//	FREECOACH_MODEL_URL, FREECOACH_MODEL_NAME, FREECOACH_MODEL_TIMEOUT,
//	FREECOACH_ADJUST_WINDOW, FREECOACH_ADJUST_WORKERS,
//	FREECOACH_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FREECOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FREECOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FREECOACH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FREECOACH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FREECOACH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FREECOACH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FREECOACH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FREECOACH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FREECOACH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("FREECOACH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FREECOACH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("FREECOACH_MODEL_URL"); v != "" {
		cfg.Model.URL = v
	}
	if v := os.Getenv("FREECOACH_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("FREECOACH_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("FREECOACH_ADJUST_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Adjustment.Window = n
		}
	}
	if v := os.Getenv("FREECOACH_ADJUST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Adjustment.Workers = n
		}
	}
	if v := os.Getenv("FREECOACH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Migrations == "" {
		cfg.Database.Migrations = "migrations"
	}
	if cfg.Model.URL == "" {
		cfg.Model.URL = "http://localhost:11434"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gemma3:4b"
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 2 * time.Minute
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.3
	}
	if cfg.Adjustment.Window == 0 {
		cfg.Adjustment.Window = 3
	}
	if cfg.Adjustment.Workers == 0 {
		cfg.Adjustment.Workers = 4
	}
	if cfg.Adjustment.QueueSize == 0 {
		cfg.Adjustment.QueueSize = 256
	}
	if cfg.Adjustment.Timeout == 0 {
		cfg.Adjustment.Timeout = 30 * time.Second
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "freecoach"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (want postgres or sqlite)", c.Database.Driver)
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if c.Adjustment.Window < 2 {
		return fmt.Errorf("adjustment.window must be at least 2")
	}
	if c.Adjustment.Workers < 1 {
		return fmt.Errorf("adjustment.workers must be at least 1")
	}
	if c.Adjustment.QueueSize < 1 {
		return fmt.Errorf("adjustment.queue_size must be at least 1")
	}
	return nil
}
