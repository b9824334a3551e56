// Package config loads server configuration from an optional YAML file and
// FREELANCE_* environment variables. Command-line flags are applied on top
// by cmd/server.
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

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Invoices InvoicesConfig `yaml:"invoices"`
	Repair   RepairConfig   `yaml:"repair"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"` // sqlite file, ":memory:" allowed
	Mongo  MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// SlogLevel maps Level to a slog.Level, defaulting to info.
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

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type InvoicesConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type RepairConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	BatchSize      int           `yaml:"batch_size"`
	RecomputeEvery int           `yaml:"recompute_every"` // ticks between full recomputes, 0 disables
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "freelance.db",
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "freelance",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Invoices: InvoicesConfig{
			MaxAttempts: 5,
		},
		Repair: RepairConfig{
			Enabled:        true,
			Interval:       time.Minute,
			BatchSize:      100,
			RecomputeEvery: 60,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
// An empty path falls back to FREELANCE_CONFIG_PATH; with neither set only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FREELANCE_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("FREELANCE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("FREELANCE_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if driver := os.Getenv("FREELANCE_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := os.Getenv("FREELANCE_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if uri := os.Getenv("FREELANCE_MONGO_URI"); uri != "" {
		cfg.Store.Mongo.URI = uri
	}
	if db := os.Getenv("FREELANCE_MONGO_DATABASE"); db != "" {
		cfg.Store.Mongo.Database = db
	}
	if level := os.Getenv("FREELANCE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("FREELANCE_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
	if origins := os.Getenv("FREELANCE_CORS_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
	if err := envInt("FREELANCE_INVOICE_MAX_ATTEMPTS", &cfg.Invoices.MaxAttempts); err != nil {
		return err
	}
	if enabled := os.Getenv("FREELANCE_REPAIR_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid FREELANCE_REPAIR_ENABLED: %w", err)
		}
		cfg.Repair.Enabled = v
	}
	if interval := os.Getenv("FREELANCE_REPAIR_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid FREELANCE_REPAIR_INTERVAL: %w", err)
		}
		cfg.Repair.Interval = d
	}
	return nil
}

func envInt(name string, dst *int) error {
	s := os.Getenv(name)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return fmt.Errorf("store.mongo.uri and store.mongo.database are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Invoices.MaxAttempts < 1 {
		return fmt.Errorf("invoices.max_attempts must be at least 1")
	}
	if c.Repair.Enabled && c.Repair.Interval <= 0 {
		return fmt.Errorf("repair.interval must be positive when repair is enabled")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
