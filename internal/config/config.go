package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Each field has a documented default;
// values resolve as command-line flag > environment > .env file > default.
type Config struct {
	Environment string `env:"FAMILYTASKS_ENV" envDefault:"development"`
	Port        string `env:"FAMILYTASKS_PORT" envDefault:"8080"`
	DBPath      string `env:"FAMILYTASKS_DB_PATH" envDefault:"familytasks.db"`

	LogLevel  string `env:"FAMILYTASKS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FAMILYTASKS_LOG_FORMAT" envDefault:"text"` // text, json

	// Timezone resolves "today" and the leaderboard week boundaries.
	Timezone string `env:"FAMILYTASKS_TIMEZONE" envDefault:"UTC"`

	SessionTTL time.Duration `env:"FAMILYTASKS_SESSION_TTL" envDefault:"720h"`

	// TriviaSecret keys the HMAC on question references. Required in production.
	TriviaSecret string `env:"FAMILYTASKS_TRIVIA_SECRET" envDefault:"dev-secret"`
	TriviaPoints int    `env:"FAMILYTASKS_TRIVIA_POINTS" envDefault:"5"`

	// QuizAPIKey enables the external question tier. Empty disables it.
	QuizAPIKey string `env:"FAMILYTASKS_QUIZAPI_KEY"`
	QuizAPIURL string `env:"FAMILYTASKS_QUIZAPI_URL" envDefault:"https://quizapi.io/api/v1/questions"`

	Backup Backup `envPrefix:"FAMILYTASKS_BACKUP_"`
}

// Backup configures encrypted snapshots to S3-compatible storage.
type Backup struct {
	Bucket     string `env:"BUCKET"`
	Prefix     string `env:"PREFIX" envDefault:"familytasks"`
	Region     string `env:"REGION" envDefault:"us-east-1"`
	Endpoint   string `env:"ENDPOINT"`
	AccessKey  string `env:"ACCESS_KEY"`
	SecretKey  string `env:"SECRET_KEY"`
	Passphrase string `env:"PASSPHRASE"`
	Keep       int    `env:"KEEP" envDefault:"14"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid FAMILYTASKS_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.TriviaPoints < 1 {
		return errors.New("FAMILYTASKS_TRIVIA_POINTS must be positive")
	}
	if c.Environment == "production" && (c.TriviaSecret == "" || c.TriviaSecret == "dev-secret") {
		return errors.New("FAMILYTASKS_TRIVIA_SECRET is required in production")
	}
	if c.SessionTTL <= 0 {
		return errors.New("FAMILYTASKS_SESSION_TTL must be positive")
	}
	if c.Backup.Keep < 0 {
		return errors.New("FAMILYTASKS_BACKUP_KEEP must not be negative")
	}
	return nil
}

// Location returns the configured time zone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
