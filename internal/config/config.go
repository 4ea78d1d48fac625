// internal/config/config.go

// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrInvalidConfig is returned when parsed values are out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every setting of the registry service.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"lendingregistry"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DefaultMaxItems int    `env:"DEFAULT_MAX_ITEMS" envDefault:"3"`
	SeedFile        string `env:"SEED_FILE"`

	Notify NotifyConfig `envPrefix:"NOTIFY_"`
}

// NotifyConfig selects and tunes the notification channel.
type NotifyConfig struct {
	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	// Rate is notifications per second; zero disables throttling.
	Rate  float64 `env:"RATE" envDefault:"0"`
	Burst int     `env:"BURST" envDefault:"10"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse parses the environment with opts, without touching .env files.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DefaultMaxItems <= 0 {
		errs = append(errs, errors.New("DEFAULT_MAX_ITEMS must be positive"))
	}
	if c.Notify.Rate < 0 {
		errs = append(errs, errors.New("NOTIFY_RATE must not be negative"))
	}
	if c.Notify.Rate > 0 && c.Notify.Burst <= 0 {
		errs = append(errs, errors.New("NOTIFY_BURST must be positive when NOTIFY_RATE is set"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}
