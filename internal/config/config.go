// Package config loads Domu runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Environment string          `yaml:"environment" env:"DOMU_ENV"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Logging     LoggingConfig   `yaml:"logging"`
	Storage     StorageConfig   `yaml:"storage"`
	Redis       RedisConfig     `yaml:"redis"`
	Mail        MailConfig      `yaml:"mail"`
	Jobs        JobsConfig      `yaml:"jobs"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string `yaml:"host" env:"DOMU_HTTP_HOST"`
	Port           int    `yaml:"port" env:"DOMU_HTTP_PORT"`
	PublicBaseURL  string `yaml:"public_base_url" env:"DOMU_PUBLIC_BASE_URL"`
	FrontendURL    string `yaml:"frontend_url" env:"DOMU_FRONTEND_URL"`
	ReadTimeoutSec int    `yaml:"read_timeout_seconds" env:"DOMU_HTTP_READ_TIMEOUT"`
}

// DatabaseConfig controls the SQL connection pool. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DOMU_DB_DRIVER"`
	DSN             string `yaml:"dsn" env:"DOMU_DB_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DOMU_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DOMU_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds" env:"DOMU_DB_CONN_MAX_LIFETIME"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DOMU_DB_AUTO_MIGRATE"`
}

// AuthConfig controls JWT issuing and password hashing.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" env:"DOMU_JWT_SECRET"`
	JWTIssuer     string        `yaml:"jwt_issuer" env:"DOMU_JWT_ISSUER"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"DOMU_JWT_TTL"`
	BcryptCost    int           `yaml:"bcrypt_cost" env:"DOMU_BCRYPT_COST"`
	ConfirmTTL    time.Duration `yaml:"confirmation_ttl" env:"DOMU_CONFIRMATION_TTL"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl" env:"DOMU_RESET_TOKEN_TTL"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"DOMU_LOG_LEVEL"`
	Format     string `yaml:"format" env:"DOMU_LOG_FORMAT"`
	Output     string `yaml:"output" env:"DOMU_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"DOMU_LOG_FILE_PREFIX"`
}

// StorageConfig selects the file store backend: "local" or "gcs".
type StorageConfig struct {
	Backend         string        `yaml:"backend" env:"DOMU_STORAGE_BACKEND"`
	LocalDir        string        `yaml:"local_dir" env:"DOMU_STORAGE_LOCAL_DIR"`
	GCSBucket       string        `yaml:"gcs_bucket" env:"DOMU_GCS_BUCKET"`
	GCSCredentials  string        `yaml:"gcs_credentials_file" env:"DOMU_GCS_CREDENTIALS_FILE"`
	SignedURLExpiry time.Duration `yaml:"signed_url_expiry" env:"DOMU_SIGNED_URL_EXPIRY"`
}

// RedisConfig enables cross-instance chat fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"DOMU_REDIS_ADDR"`
	Password string `yaml:"password" env:"DOMU_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"DOMU_REDIS_DB"`
}

// MailConfig configures SMTP delivery. An empty Host logs mails instead.
type MailConfig struct {
	Host     string `yaml:"host" env:"DOMU_SMTP_HOST"`
	Port     int    `yaml:"port" env:"DOMU_SMTP_PORT"`
	Username string `yaml:"username" env:"DOMU_SMTP_USERNAME"`
	Password string `yaml:"password" env:"DOMU_SMTP_PASSWORD"`
	From     string `yaml:"from" env:"DOMU_SMTP_FROM"`
}

// JobsConfig holds cron schedules. An empty schedule disables the job.
type JobsConfig struct {
	Enabled        bool   `yaml:"enabled" env:"DOMU_JOBS_ENABLED"`
	ClosePolls     string `yaml:"close_polls" env:"DOMU_JOB_CLOSE_POLLS"`
	ExpireVisits   string `yaml:"expire_visits" env:"DOMU_JOB_EXPIRE_VISITS"`
	PurgeTokens    string `yaml:"purge_tokens" env:"DOMU_JOB_PURGE_TOKENS"`
	TokenRetention int    `yaml:"token_retention_days" env:"DOMU_TOKEN_RETENTION_DAYS"`
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RateLimitConfig throttles the public auth endpoints per client.
type RateLimitConfig struct {
	AuthPerSecond int `yaml:"auth_per_second" env:"DOMU_AUTH_RATE"`
	AuthBurst     int `yaml:"auth_burst" env:"DOMU_AUTH_BURST"`
}

// Origins splits the comma separated origin list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           7000,
			PublicBaseURL:  "http://localhost:7000",
			FrontendURL:    "http://localhost:5173",
			ReadTimeoutSec: 15,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Auth: AuthConfig{
			JWTIssuer:     "domu",
			TokenTTL:      24 * time.Hour,
			BcryptCost:    12,
			ConfirmTTL:    7 * 24 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout", FilePrefix: "domu"},
		Storage: StorageConfig{Backend: "local", LocalDir: "data/files", SignedURLExpiry: 15 * time.Minute},
		Mail:    MailConfig{Port: 587, From: "no-reply@domu.app"},
		Jobs: JobsConfig{
			Enabled:        true,
			ClosePolls:     "@every 1m",
			ExpireVisits:   "@every 5m",
			PurgeTokens:    "@daily",
			TokenRetention: 30,
		},
		CORS:      CORSConfig{AllowedOrigins: "http://localhost:5173"},
		RateLimit: RateLimitConfig{AuthPerSecond: 5, AuthBurst: 10},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// DOMU_CONFIG, a .env file and the environment, in that order.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("DOMU_CONFIG"))
}

// LoadFrom is Load with an explicit YAML path. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("auth.jwt_secret is required outside development")
		}
		c.Auth.JWTSecret = "domu-development-secret"
	}
	switch c.Storage.Backend {
	case "local", "gcs":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 12
	}
	return nil
}

// IsDevelopment reports whether the environment is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development") || c.Environment == ""
}
