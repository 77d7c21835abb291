// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"database_url"`
	RunMigrations bool   `yaml:"run_migrations"`
	LogLevel      string `yaml:"log_level"`

	Redis struct {
		Addr  string `yaml:"addr"`
		DB    int    `yaml:"db"`
		Queue string `yaml:"queue"`
	} `yaml:"redis"`

	Historian struct {
		BatchSize  int           `yaml:"batch_size"`
		FlushDelay time.Duration `yaml:"flush_delay"`
	} `yaml:"historian"`

	Auth struct {
		PrivateKeyPath string `yaml:"private_key_path"`
		PublicKeyPath  string `yaml:"public_key_path"`
		TokenExpire    string `yaml:"token_expire"`
	} `yaml:"auth"`

	Match struct {
		QuestionsPerMatch int           `yaml:"questions_per_match"`
		OperationTimeout  time.Duration `yaml:"operation_timeout"`
	} `yaml:"match"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	var cfg Config
	cfg.Port = "8080"
	cfg.RunMigrations = true
	cfg.LogLevel = "info"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Queue = "quizduel_match_events"
	cfg.Historian.BatchSize = 20
	cfg.Historian.FlushDelay = 500 * time.Millisecond
	cfg.Auth.TokenExpire = "72h"
	cfg.Match.QuestionsPerMatch = 10
	cfg.Match.OperationTimeout = 10 * time.Second
	return cfg
}

// Load applies, in order: defaults, the YAML file named by QUIZDUEL_CONFIG
// (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("QUIZDUEL_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromParts()
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		// set but empty disables match history
		cfg.Redis.Addr = v
	}
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Queue = getEnv("HISTORIAN_QUEUE_NAME", cfg.Redis.Queue)

	cfg.Historian.BatchSize = getEnvInt("HISTORIAN_BATCH_SIZE", cfg.Historian.BatchSize)
	if ms := getEnvInt("HISTORIAN_FLUSH_MS", 0); ms > 0 {
		cfg.Historian.FlushDelay = time.Duration(ms) * time.Millisecond
	}

	cfg.Auth.PrivateKeyPath = getEnv("JWT_PRIVATE_KEY_PATH", cfg.Auth.PrivateKeyPath)
	cfg.Auth.PublicKeyPath = getEnv("JWT_PUBLIC_KEY_PATH", cfg.Auth.PublicKeyPath)
	cfg.Auth.TokenExpire = getEnv("TOKEN_EXPIRE_TIME", cfg.Auth.TokenExpire)

	cfg.Match.QuestionsPerMatch = getEnvInt("QUESTIONS_PER_MATCH", cfg.Match.QuestionsPerMatch)
	cfg.Match.OperationTimeout = getEnvDuration("OPERATION_TIMEOUT", cfg.Match.OperationTimeout)
}

func (c Config) validate() error {
	if c.Match.QuestionsPerMatch <= 0 {
		return fmt.Errorf("questions per match must be positive, got %d", c.Match.QuestionsPerMatch)
	}
	if c.Match.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got %s", c.Match.OperationTimeout)
	}
	if c.Historian.BatchSize <= 0 {
		return fmt.Errorf("historian batch size must be positive, got %d", c.Historian.BatchSize)
	}
	return nil
}

// postgresURLFromParts builds a URL from POSTGRES_USER, POSTGRES_PASSWORD,
// PG_HOST, PG_PORT and PG_DATABASE, or returns "" when PG_HOST is unset.
func postgresURLFromParts() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
