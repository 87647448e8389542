package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"WalletAuthBridge"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Issuer side: the PEM public key the identity provider signs with.
	IssuerPublicKey string        `env:"DYNAMIC_PUBLIC_KEY,required,notEmpty"`
	IssuerName      string        `env:"ISSUER_NAME"`
	IssuerAudience  string        `env:"ISSUER_AUDIENCE"`
	TokenLeeway     time.Duration `env:"TOKEN_LEEWAY" envDefault:"0s"`

	DatabaseURL        string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseServiceKey string `env:"DATABASE_SERVICE_KEY"`
	AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	SessionSecret   string        `env:"SESSION_JWT_SECRET,required,notEmpty"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionAudience string        `env:"SESSION_AUDIENCE" envDefault:"authenticated"`

	RedisURL          string        `env:"REDIS_URL"`
	ExchangeRateLimit int           `env:"EXCHANGE_RATE_LIMIT" envDefault:"30"`
	InflightTTL       time.Duration `env:"INFLIGHT_TTL" envDefault:"30s"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"identity.events"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return parse(env.Options{})
}

// Parse builds a Config from the given variables only, ignoring the process environment.
func Parse(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, fmt.Errorf("TOKEN_LEEWAY must not be negative, got %s", c.TokenLeeway))
	}
	if c.ExchangeRateLimit < 0 {
		errs = append(errs, fmt.Errorf("EXCHANGE_RATE_LIMIT must not be negative, got %d", c.ExchangeRateLimit))
	}
	if c.InflightTTL <= 0 {
		errs = append(errs, fmt.Errorf("INFLIGHT_TTL must be positive, got %s", c.InflightTTL))
	}
	return errors.Join(errs...)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Hostname is used to tag emitted events; it never fails.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
