package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full bot configuration.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Trakt     TraktConfig     `yaml:"trakt"`
	TMDB      TMDBConfig      `yaml:"tmdb"`
	Storage   StorageConfig   `yaml:"storage"`
	Grid      GridConfig      `yaml:"grid"`
	Ops       OpsConfig       `yaml:"ops"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type DiscordConfig struct {
	Token          string        `yaml:"token"           env:"DISCORD_TOKEN"`
	Prefix         string        `yaml:"prefix"          env:"BOT_PREFIX"           env-default:"!"`
	CommandTimeout time.Duration `yaml:"command_timeout" env:"BOT_COMMAND_TIMEOUT"  env-default:"60s"`
}

type TraktConfig struct {
	APIKey      string        `yaml:"api_key"      env:"TRAKT_API_KEY"`
	Timeout     time.Duration `yaml:"timeout"      env:"TRAKT_TIMEOUT"       env-default:"15s"`
	VerifyUsers bool          `yaml:"verify_users" env:"TRAKT_VERIFY_USERS"  env-default:"true"`
}

type TMDBConfig struct {
	APIKey  string        `yaml:"api_key" env:"TMDB_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"TMDB_TIMEOUT" env-default:"10s"`
}

type StorageConfig struct {
	DatabasePath string        `yaml:"database_path" env:"DB_PATH"          env-default:"./data/trakt.db"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"  env:"DB_BUSY_TIMEOUT"  env-default:"5s"`
	UsersFile    string        `yaml:"users_file"    env:"USERS_FILE"       env-default:"users.json"`
}

type GridConfig struct {
	FetchTimeout   time.Duration `yaml:"fetch_timeout"   env:"GRID_FETCH_TIMEOUT"   env-default:"15s"`
	MaxConcurrency int           `yaml:"max_concurrency" env:"GRID_MAX_CONCURRENCY" env-default:"8"`
}

type OpsConfig struct {
	Addr string `yaml:"addr" env:"OPS_ADDR" env-default:":9090"`
}

type LogConfig struct {
	File       string `yaml:"file"         env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  env-default:"10"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"  env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"14"`
}

// RateLimitConfig bounds commands per Discord user: Burst commands at once,
// refilled one every Interval.
type RateLimitConfig struct {
	Interval time.Duration `yaml:"interval" env:"RATE_LIMIT_INTERVAL" env-default:"3s"`
	Burst    int           `yaml:"burst"    env:"RATE_LIMIT_BURST"    env-default:"5"`
}

// Load reads an optional .env file, then configuration from a YAML file and
// environment variables. Priority: ENV > YAML > defaults.
// The YAML path comes from CONFIG_PATH; without it only ENV and defaults apply.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Discord.Token) == "" {
		problems = append(problems, "DISCORD_TOKEN is required")
	}
	if strings.TrimSpace(c.Trakt.APIKey) == "" {
		problems = append(problems, "TRAKT_API_KEY is required")
	}
	if c.Discord.Prefix == "" {
		problems = append(problems, "BOT_PREFIX must not be empty")
	}
	if c.RateLimit.Burst < 1 {
		problems = append(problems, "RATE_LIMIT_BURST must be at least 1")
	}
	if c.RateLimit.Interval <= 0 {
		problems = append(problems, "RATE_LIMIT_INTERVAL must be positive")
	}
	if c.Storage.DatabasePath == "" || c.Storage.UsersFile == "" {
		problems = append(problems, "DB_PATH and USERS_FILE are required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
