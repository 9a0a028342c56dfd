package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/smallwat3r/secretdrop/internal/domain"
)

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port              string        `yaml:"port" env:"PORT"`
	PublicURL         string        `yaml:"public_url" env:"PUBLIC_URL"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	CORSOrigins       []string      `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// Store settings
	StoreDriver       string        `yaml:"store_driver" env:"STORE_DRIVER"`
	RedisURL          string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisPassword     string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisPoolSize     int           `yaml:"redis_pool_size" env:"REDIS_POOL_SIZE"`
	RedisMinIdle      int           `yaml:"redis_min_idle" env:"REDIS_MIN_IDLE"`
	RedisDialTimeout  time.Duration `yaml:"redis_dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	RedisReadTimeout  time.Duration `yaml:"redis_read_timeout" env:"REDIS_READ_TIMEOUT"`
	RedisWriteTimeout time.Duration `yaml:"redis_write_timeout" env:"REDIS_WRITE_TIMEOUT"`
	KeyPrefix         string        `yaml:"key_prefix" env:"KEY_PREFIX"`

	// Record settings
	MaxPayloadBytes  int64  `yaml:"max_payload_bytes" env:"MAX_PAYLOAD_BYTES"`
	MaxExpireSeconds int64  `yaml:"max_expire_seconds" env:"MAX_EXPIRE_SECONDS"`
	IDLength         int    `yaml:"id_length" env:"ID_LENGTH"`
	IDAlphabet       string `yaml:"id_alphabet" env:"ID_ALPHABET"`

	// Attempt limits
	ReadMaxAttempts   int           `yaml:"read_max_attempts" env:"READ_MAX_ATTEMPTS"`
	ReadWindow        time.Duration `yaml:"read_window" env:"READ_WINDOW"`
	DeleteMaxAttempts int           `yaml:"delete_max_attempts" env:"DELETE_MAX_ATTEMPTS"`
	DeleteWindow      time.Duration `yaml:"delete_window" env:"DELETE_WINDOW"`

	// Request limiter for submissions, per client IP
	RequestLimitPost   int           `yaml:"request_limit_post" env:"REQUEST_LIMIT_POST"`
	RequestLimitWindow time.Duration `yaml:"request_limit_window" env:"REQUEST_LIMIT_WINDOW"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// Shutdown settings
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:              "8080",
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		RequestTimeout:    60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB

		StoreDriver:       DriverRedis,
		RedisURL:          "redis://localhost:6379/0",
		RedisPoolSize:     10,
		RedisMinIdle:      2,
		RedisDialTimeout:  5 * time.Second,
		RedisReadTimeout:  3 * time.Second,
		RedisWriteTimeout: 3 * time.Second,

		MaxPayloadBytes:  domain.MaxPayloadSize,
		MaxExpireSeconds: domain.MaxExpireSeconds,
		IDLength:         domain.DefaultIDLength,
		IDAlphabet:       domain.DefaultIDAlphabet,

		ReadMaxAttempts:   domain.MaxReadAttempts,
		ReadWindow:        domain.ReadAttemptWindow,
		DeleteMaxAttempts: domain.MaxDeleteAttempts,
		DeleteWindow:      domain.DeleteAttemptWindow,

		RequestLimitPost:   30,
		RequestLimitWindow: time.Minute,

		LogLevel:  "info",
		LogFormat: "json",

		ShutdownTimeout: 5 * time.Second,
	}
}

// Load starts from the defaults, applies the YAML file at path if one is
// given, then the environment, and validates the result. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}
	switch c.StoreDriver {
	case DriverRedis, DriverValkey:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for store driver %q", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q (must be redis, valkey or memory)", c.StoreDriver)
	}
	if c.RedisPoolSize < 1 {
		return errors.New("REDIS_POOL_SIZE must be a positive integer")
	}
	if c.RedisMinIdle < 0 {
		return errors.New("REDIS_MIN_IDLE must be a non-negative integer")
	}
	if c.MaxPayloadBytes < 1 {
		return errors.New("MAX_PAYLOAD_BYTES must be positive")
	}
	if c.MaxExpireSeconds < 1 {
		return errors.New("MAX_EXPIRE_SECONDS must be positive")
	}
	if c.IDLength < 1 || c.IDAlphabet == "" {
		return errors.New("ID_LENGTH must be positive and ID_ALPHABET non-empty")
	}
	if c.ReadMaxAttempts < 1 || c.DeleteMaxAttempts < 1 {
		return errors.New("attempt limits must be positive")
	}
	if c.ReadWindow < time.Second || c.DeleteWindow < time.Second {
		return errors.New("attempt windows must be at least one second")
	}
	if c.RequestLimitPost < 0 {
		return errors.New("REQUEST_LIMIT_POST must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (must be json or text)", c.LogFormat)
	}
	return nil
}

// ListenAddr returns the address string for the HTTP server.
func (c Config) ListenAddr() string {
	return ":" + c.Port
}
