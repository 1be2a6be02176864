package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Server    ServerConfig    `envconfig:"SERVER"`
	Database  DatabaseConfig  `envconfig:"DB"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Dispatch  DispatchConfig  `envconfig:"DISPATCH"`
	Log       LogConfig       `envconfig:"LOG"`
}

type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	AdminPort      string        `envconfig:"ADMIN_PORT" default:"9090"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes int           `envconfig:"MAX_HEADER_BYTES" default:"1048576"`
}

type DatabaseConfig struct {
	Host         string        `envconfig:"HOST" default:"localhost"`
	Port         int           `envconfig:"PORT" default:"5432"`
	User         string        `envconfig:"USER" default:"resvia"`
	Password     string        `envconfig:"PASSWORD"`
	Name         string        `envconfig:"NAME" default:"resvia"`
	SSLMode      string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	MaxLifetime  time.Duration `envconfig:"MAX_LIFETIME" default:"30m"`
	MaxIdleTime  time.Duration `envconfig:"MAX_IDLE_TIME" default:"10m"`
	ReplicaDSNs  []string      `envconfig:"REPLICA_DSNS"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	PoolSize int    `envconfig:"POOL_SIZE" default:"10"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RateLimitConfig struct {
	Requests int           `envconfig:"REQUESTS" default:"100"`
	Window   time.Duration `envconfig:"WINDOW" default:"60s"`
}

type DispatchConfig struct {
	Workers        int           `envconfig:"WORKERS" default:"4"`
	QueueSize      int           `envconfig:"QUEUE_SIZE" default:"256"`
	AttemptTimeout time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"10s"`
	OutboundRPS    float64       `envconfig:"OUTBOUND_RPS" default:"20"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// Load reads .env when present, then overlays process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("RESVIA", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Dispatch.Workers <= 0 || c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("dispatch workers and queue size must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
