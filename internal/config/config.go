// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/talgya/classroom/internal/engine"
	"github.com/talgya/classroom/internal/weights"
)

// Config is everything the classsim binary reads from CLASSSIM_* variables.
type Config struct {
	DBPath      string `env:"CLASSSIM_DB_PATH" envDefault:"data/classroom.db"`
	APIPort     int    `env:"CLASSSIM_API_PORT" envDefault:"8080"`
	AdminKey    string `env:"CLASSSIM_ADMIN_KEY"`
	WeightsFile string `env:"CLASSSIM_WEIGHTS_FILE"`
	LogLevel    string `env:"CLASSSIM_LOG_LEVEL" envDefault:"info"`

	TickInterval time.Duration `env:"CLASSSIM_TICK_INTERVAL" envDefault:"1s"`
	HoursPerTick float64       `env:"CLASSSIM_HOURS_PER_TICK" envDefault:"1"`
	// Clock speed of newly created worlds. Unset follows the tick loop.
	TimeScale float64 `env:"CLASSSIM_TIME_SCALE"`

	WindowDays   int `env:"CLASSSIM_AGGREGATE_WINDOW_DAYS" envDefault:"7"`
	SnapshotPage int `env:"CLASSSIM_SNAPSHOT_PAGE" envDefault:"1000"`
	EventPage    int `env:"CLASSSIM_EVENT_PAGE" envDefault:"500"`

	ConversationLimit int `env:"CLASSSIM_CONVERSATION_LIMIT" envDefault:"3"`

	// Requests per second and burst allowed per client by the API.
	RateLimit float64 `env:"CLASSSIM_RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"CLASSSIM_RATE_BURST" envDefault:"20"`

	Seed      int64  `env:"CLASSSIM_SEED" envDefault:"42"`
	ClassSize int    `env:"CLASSSIM_CLASS_SIZE" envDefault:"22"`
	ClassName string `env:"CLASSSIM_CLASS_NAME" envDefault:"G3-1"`
}

// LoadDotenv reads a .env file into the environment if one exists. Variables
// already set win.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the environment.
func Load(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := LoadDotenv(dotenv); err != nil {
			return Config{}, err
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.HoursPerTick <= 0:
		return fmt.Errorf("CLASSSIM_HOURS_PER_TICK must be positive, got %v", c.HoursPerTick)
	case c.TickInterval <= 0:
		return fmt.Errorf("CLASSSIM_TICK_INTERVAL must be positive, got %v", c.TickInterval)
	case c.TimeScale < 0:
		return fmt.Errorf("CLASSSIM_TIME_SCALE must not be negative, got %v", c.TimeScale)
	case c.ClassSize <= 0:
		return fmt.Errorf("CLASSSIM_CLASS_SIZE must be positive, got %d", c.ClassSize)
	case c.ConversationLimit < 0:
		return fmt.Errorf("CLASSSIM_CONVERSATION_LIMIT must not be negative, got %d", c.ConversationLimit)
	}
	return nil
}

// ClockScale is the time scale given to new worlds. Without an explicit
// CLASSSIM_TIME_SCALE it is the loop's own pace, HoursPerTick simulated
// hours every TickInterval, so serve ticks and world clocks agree.
func (c Config) ClockScale() float64 {
	if c.TimeScale > 0 {
		return c.TimeScale
	}
	return c.HoursPerTick * 3600 / c.TickInterval.Seconds()
}

// Weights returns the model weights: the YAML file when one is configured,
// the defaults otherwise.
func (c Config) Weights() (weights.Config, error) {
	if c.WeightsFile == "" {
		return weights.Default(), nil
	}
	w, err := weights.LoadFile(c.WeightsFile)
	if err != nil {
		return weights.Config{}, err
	}
	slog.Info("weights loaded", "path", c.WeightsFile)
	return w, nil
}

// Aggregator returns the daily aggregation bounds.
func (c Config) Aggregator() engine.AggregatorConfig {
	return engine.AggregatorConfig{
		WindowDays:   c.WindowDays,
		SnapshotPage: c.SnapshotPage,
		EventPage:    c.EventPage,
	}
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
