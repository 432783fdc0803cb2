// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port      int    `env:"PORT"       envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	StoreDriver    string `env:"STORE_DRIVER"    envDefault:"sqlite"`
	DBPath         string `env:"DB_PATH"         envDefault:"./data/travelmatch.db"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	PostgresDriver string `env:"POSTGRES_DRIVER" envDefault:"pgx"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE"  envDefault:"travelmatch"`
	UserCacheSize  int    `env:"USER_CACHE_SIZE" envDefault:"1024"`

	MatchThreshold         time.Duration `env:"MATCH_THRESHOLD"           envDefault:"30m"`
	MatchMaxCommitAttempts int           `env:"MATCH_MAX_COMMIT_ATTEMPTS" envDefault:"5"`
	DefaultTimezone        string        `env:"DEFAULT_TIMEZONE"          envDefault:"UTC"`

	NotifyWorkers int           `env:"NOTIFY_WORKERS" envDefault:"8"`
	NotifyAsync   bool          `env:"NOTIFY_ASYNC"   envDefault:"true"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`

	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`

	SendGridAPIKey    string `env:"SENDGRID_API_KEY"`
	SendGridFromEmail string `env:"SENDGRID_FROM_EMAIL"`
	SendGridFromName  string `env:"SENDGRID_FROM_NAME" envDefault:"Travel Match"`

	OTelEndpoint    string  `env:"OTEL_ENDPOINT"`
	OTelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"travelmatch"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
		if c.PostgresDriver != "pgx" && c.PostgresDriver != "postgres" {
			errs = append(errs, fmt.Errorf("POSTGRES_DRIVER must be pgx or postgres, got %q", c.PostgresDriver))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be sqlite, postgres or mongo, got %q", c.StoreDriver))
	}

	if c.UserCacheSize < 0 {
		errs = append(errs, fmt.Errorf("USER_CACHE_SIZE must not be negative, got %d", c.UserCacheSize))
	}
	if c.MatchThreshold < 0 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must not be negative, got %s", c.MatchThreshold))
	}
	if c.MatchMaxCommitAttempts < 1 {
		errs = append(errs, fmt.Errorf("MATCH_MAX_COMMIT_ATTEMPTS must be at least 1, got %d", c.MatchMaxCommitAttempts))
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE: %w", err))
	}
	if c.NotifyWorkers < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_WORKERS must be at least 1, got %d", c.NotifyWorkers))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout))
	}

	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be in 0..1, got %g", c.OTelSampleRatio))
	}

	return errors.Join(errs...)
}

// Location returns the zone used for arrival times without an offset.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SMSEnabled reports whether Twilio credentials are complete.
func (c Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

// EmailEnabled reports whether SendGrid credentials are complete.
func (c Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != ""
}
