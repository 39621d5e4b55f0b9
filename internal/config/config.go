package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath   = ".env"
	envPrefix = "AIRSYNC"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env      string
	Logger   Logger
	Storage  Storage
	Server   Server
	Secrets  Secrets
	Airtable Airtable
	Sync     Sync
}

type Logger struct {
	// File путь к файлу лога с ротацией, пустой пишет только в stdout
	File string
}

type Storage struct {
	Driver      string
	SQLitePath  string
	DatabaseURI string
	// Migrations каталог с миграциями, пустой использует встроенные
	Migrations string
}

type Server struct {
	RunAddress string
	// APIToken bearer токен HTTP API, пустой отключает проверку
	APIToken string
}

type Secrets struct {
	File       string
	Passphrase string
}

type Airtable struct {
	BaseURL     string
	MinInterval time.Duration
	RetryDelay  time.Duration
	MaxRetries  int
}

type Sync struct {
	MaxPullRetries int
}

// Load читает конфигурацию из .env, переменных окружения AIRSYNC_* и необязательного файла
func Load(path string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Env: v.GetString("app_env"),
		Logger: Logger{
			File: v.GetString("log_file"),
		},
		Storage: Storage{
			Driver:      v.GetString("storage_driver"),
			SQLitePath:  v.GetString("sqlite_path"),
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress: v.GetString("run_address"),
			APIToken:   v.GetString("api_token"),
		},
		Secrets: Secrets{
			File:       v.GetString("secrets_file"),
			Passphrase: v.GetString("secrets_passphrase"),
		},
		Airtable: Airtable{
			BaseURL:     v.GetString("airtable_base_url"),
			MinInterval: v.GetDuration("airtable_min_interval"),
			RetryDelay:  v.GetDuration("airtable_retry_delay"),
			MaxRetries:  v.GetInt("airtable_max_retries"),
		},
		Sync: Sync{
			MaxPullRetries: v.GetInt("sync_max_pull_retries"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoad загружает конфигурацию и завершает процесс при ошибке
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalln(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("log_file", "")
	v.SetDefault("storage_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "airsync.db")
	v.SetDefault("database_uri", "")
	v.SetDefault("migrations_path", "")
	v.SetDefault("run_address", "localhost:8080")
	v.SetDefault("api_token", "")
	v.SetDefault("secrets_file", "")
	v.SetDefault("secrets_passphrase", "")
	v.SetDefault("airtable_base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable_min_interval", 210*time.Millisecond)
	v.SetDefault("airtable_retry_delay", 2*time.Second)
	v.SetDefault("airtable_max_retries", 5)
	v.SetDefault("sync_max_pull_retries", 3)
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown app_env %q", c.Env)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURI == "" {
			return errors.New("database_uri is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage_driver %q", c.Storage.Driver)
	}

	if c.Airtable.MinInterval < 0 || c.Airtable.RetryDelay < 0 {
		return errors.New("airtable intervals must not be negative")
	}
	if c.Airtable.MaxRetries < 0 {
		return errors.New("airtable_max_retries must not be negative")
	}
	if c.Sync.MaxPullRetries < 0 {
		return errors.New("sync_max_pull_retries must not be negative")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}
