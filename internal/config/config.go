package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

// Config holds all configuration values
type Config struct {
	Addr  string `yaml:"addr" env:"ADDR, overwrite"`
	Store string `yaml:"store" env:"STORE, overwrite" validate:"oneof=sqlite mongo redis"`

	DBPath string      `yaml:"db_path" env:"DB_PATH, overwrite"`
	Mongo  MongoConfig `yaml:"mongo"`
	Redis  RedisConfig `yaml:"redis"`

	AdminAPIKey string   `yaml:"admin_api_key" env:"API_KEY, overwrite"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS, overwrite"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL, overwrite" validate:"omitempty,oneof=trace debug info warn warning error"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY, overwrite"`

	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT, overwrite" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT, overwrite" validate:"gt=0"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT, overwrite" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT, overwrite" validate:"gt=0"`

	// PORT is honoured for hosting platforms that only hand out a port number
	Port string `yaml:"-" env:"PORT"`

	DBPathSource string `yaml:"-"` // where DBPath was set from: "default", "yaml file", or "env var"
	DemoMode     bool   `yaml:"-"` // load sample data on new database (set via --demo flag)
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI, overwrite"`
	Database string `yaml:"database" env:"MONGO_DB, overwrite"`
}

type RedisConfig struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR, overwrite"`
	DB   int    `yaml:"db" env:"REDIS_DB, overwrite"`
}

func defaults() *Config {
	return &Config{
		Addr:           ":8080",
		Store:          StoreSQLite,
		DBPath:         "./licenses.db",
		DBPathSource:   "default",
		Mongo:          MongoConfig{URI: "mongodb://localhost:27017", Database: "licverify"},
		Redis:          RedisConfig{Addr: "localhost:6379"},
		CORSOrigins:    []string{"*"},
		LogLevel:       "info",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Load loads configuration from YAML file and overrides with env vars if present
func Load(path string) (*Config, error) {
	return LoadWith(context.Background(), path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	cfg := defaults()

	// Load from YAML if file exists
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		prevDBPath := cfg.DBPath
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if cfg.DBPath != prevDBPath {
			cfg.DBPathSource = "yaml file"
		}
	}

	// Override with environment variables
	prevDBPath := cfg.DBPath
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: env,
	}); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if cfg.DBPath != prevDBPath {
		cfg.DBPathSource = "env var"
	}
	if cfg.Port != "" {
		cfg.Addr = ":" + cfg.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
