package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `env:"SERVICE_NAME" envDefault:"truevote"`
	HTTPPort     string   `env:"HTTP_PORT" envDefault:"8080"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	AdmissionGrantRequired  bool   `env:"ADMISSION_GRANT_REQUIRED" envDefault:"true"`
	AdmissionGrantIssuer    string `env:"ADMISSION_GRANT_ISSUER"`
	AdmissionGrantAudience  string `env:"ADMISSION_GRANT_AUDIENCE"`
	AdmissionGrantPublicKey string `env:"ADMISSION_GRANT_PUBLIC_KEY"`

	EventBufferSize    int           `env:"EVENT_BUFFER_SIZE" envDefault:"128"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	OTelEndpoint       string        `env:"OTEL_ENDPOINT"`

	EnableTallyProjector bool `env:"ENABLE_TALLY_PROJECTOR" envDefault:"true"`

	PostgresMaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
	PostgresMaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	PostgresConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	c.PostgresDSN = strings.TrimSpace(c.PostgresDSN)
	c.AdmissionGrantIssuer = strings.TrimSpace(c.AdmissionGrantIssuer)
	c.AdmissionGrantAudience = strings.TrimSpace(c.AdmissionGrantAudience)
	c.AdmissionGrantPublicKey = strings.TrimSpace(c.AdmissionGrantPublicKey)

	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, value := range c.KafkaBrokers {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	c.KafkaBrokers = brokers
}

func (c Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("SERVICE_NAME must not be blank"))
	}
	if c.EventBufferSize <= 0 {
		errs = append(errs, errors.New("EVENT_BUFFER_SIZE must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.WorkerPollInterval <= 0 {
		errs = append(errs, errors.New("WORKER_POLL_INTERVAL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.AdmissionGrantRequired {
		if c.AdmissionGrantIssuer == "" {
			errs = append(errs, errors.New("ADMISSION_GRANT_ISSUER is required when grants are enforced"))
		}
		if c.AdmissionGrantAudience == "" {
			errs = append(errs, errors.New("ADMISSION_GRANT_AUDIENCE is required when grants are enforced"))
		}
		if c.AdmissionGrantPublicKey == "" {
			errs = append(errs, errors.New("ADMISSION_GRANT_PUBLIC_KEY is required when grants are enforced"))
		}
	}
	return errors.Join(errs...)
}
