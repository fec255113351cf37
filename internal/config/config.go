// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// DB holds PostgreSQL connection settings.
type DB struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD" default:"postgres"`
	Name     string `envconfig:"NAME" default:"courtbooking"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"20"`
}

// DSN builds a libpq-compatible connection string.
func (c DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Config is the full service configuration.
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	Storage string `envconfig:"STORAGE" default:"postgres"`
	DB      DB     `envconfig:"DB"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Booking rules
	MinHoursBeforeBooking   int           `envconfig:"MIN_HOURS_BEFORE_BOOKING" default:"1"`
	MaxDaysInAdvance        int           `envconfig:"MAX_DAYS_IN_ADVANCE" default:"30"`
	CancellationHoursBefore int           `envconfig:"CANCELLATION_HOURS_BEFORE" default:"2"`
	MaxConcurrentBookings   int           `envconfig:"MAX_CONCURRENT_BOOKINGS" default:"5"`
	AutoConfirm             bool          `envconfig:"AUTO_CONFIRM" default:"false"`
	PendingTTL              time.Duration `envconfig:"PENDING_TTL" default:"30m"`
	Timezone                string        `envconfig:"BOOKING_TIMEZONE" default:"UTC"`

	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`
	RetryBackoff   time.Duration `envconfig:"RETRY_BACKOFF" default:"200ms"`
	SweepSchedule  string        `envconfig:"SWEEP_SCHEDULE" default:"@every 1m"`

	// Notifications; publishing is disabled when RabbitURL is empty.
	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Env          string `envconfig:"ENV" default:"dev"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Location resolves the booking timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.MinHoursBeforeBooking < 0 || c.CancellationHoursBefore < 0 {
		return fmt.Errorf("booking hour thresholds must not be negative")
	}
	if c.MaxDaysInAdvance <= 0 {
		return fmt.Errorf("MAX_DAYS_IN_ADVANCE must be positive")
	}
	if c.MaxConcurrentBookings <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_BOOKINGS must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
