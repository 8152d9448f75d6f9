package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// TUNEFRIENDS_DATABASE_DSN.
const EnvPrefix = "TUNEFRIENDS_"

type Config struct {
	Server    Server    `yaml:"server" envPrefix:"SERVER_"`
	Database  Database  `yaml:"database" envPrefix:"DATABASE_"`
	Session   Session   `yaml:"session" envPrefix:"SESSION_"`
	Locks     Locks     `yaml:"locks" envPrefix:"LOCKS_"`
	Snapshots Snapshots `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	Cache     Cache     `yaml:"cache" envPrefix:"CACHE_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
}

type Server struct {
	Addr         string  `yaml:"addr" env:"ADDR" validate:"required"`
	RateLimit    float64 `yaml:"rate_limit" env:"RATE_LIMIT" validate:"gte=0"`
	RateBurst    int     `yaml:"rate_burst" env:"RATE_BURST" validate:"gte=0"`
	SecureCookie bool    `yaml:"secure_cookie" env:"SECURE_COOKIE"`
}

type Database struct {
	Driver         string `yaml:"driver" env:"DRIVER" validate:"oneof=memory mongo postgres mysql sqlite"`
	DSN            string `yaml:"dsn" env:"DSN" validate:"required_unless=Driver memory"`
	Name           string `yaml:"name" env:"NAME"`
	ConnectRetries uint64 `yaml:"connect_retries" env:"CONNECT_RETRIES"`
}

type Session struct {
	Secret string        `yaml:"secret" env:"SECRET" validate:"required,min=16"`
	TTL    time.Duration `yaml:"ttl" env:"TTL" validate:"gt=0"`
}

type Locks struct {
	RejectOverlap bool `yaml:"reject_overlap" env:"REJECT_OVERLAP"`
	// SweepSchedule is a cron spec; empty leaves sweeping to reads.
	SweepSchedule string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
}

type Snapshots struct {
	Expiry time.Duration `yaml:"expiry" env:"EXPIRY" validate:"gt=0"`
}

type Cache struct {
	Backend   string        `yaml:"backend" env:"BACKEND" validate:"oneof=lru redis"`
	Size      int           `yaml:"size" env:"SIZE" validate:"gt=0"`
	TTL       time.Duration `yaml:"ttl" env:"TTL" validate:"gt=0"`
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=json text"`
}

// Default returns the configuration used for anything a file or the
// environment leaves unset.
func Default() *Config {
	return &Config{
		Server:    Server{Addr: ":8080", RateLimit: 20, RateBurst: 40},
		Database:  Database{Driver: "memory", Name: "tunefriends", ConnectRetries: 5},
		Session:   Session{TTL: 24 * time.Hour},
		Snapshots: Snapshots{Expiry: 24 * time.Hour},
		Cache:     Cache{Backend: "lru", Size: 4096, TTL: 5 * time.Minute},
		Log:       Log{Level: "info", Format: "json"},
	}
}

// LoadConfig layers defaults, the YAML file at path, variables from
// envFile and the process environment, then validates the result. Empty
// path or envFile skip that layer, and a missing envFile is ignored.
func LoadConfig(path, envFile string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
