// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ClusterDir string `validate:"required"`
	HTTPAddr   string `validate:"required"`
	Mode       string `validate:"oneof=tui serve"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
	LogFile   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	RecordDB string

	MgmtTimeout     time.Duration `validate:"gt=0"`
	ProbeTimeout    time.Duration `validate:"gt=0"`
	PollConcurrency int           `validate:"min=1"`
	ActionRate      float64       `validate:"gt=0"`
	ActionBurst     int           `validate:"min=1"`

	TargetInterval time.Duration `validate:"min=1s"`
	AvgSamples     int           `validate:"min=3"`
	AvgTrim        int           `validate:"min=0"`
}

const (
	ModeTUI   = "tui"
	ModeServe = "serve"
)

// Load reads .env (when present) and the PMON_* variables, applying defaults.
// A malformed value is an error rather than a silent default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ClusterDir:    getenv("PMON_CLUSTER_DIR", "."),
		HTTPAddr:      getenv("PMON_HTTP_ADDR", ":8080"),
		Mode:          ModeTUI,
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "text"),
		LogFile:       getenv("PMON_LOG_FILE", "pmon.log"),
		RedisAddr:     os.Getenv("PMON_REDIS_ADDR"),
		RedisPassword: os.Getenv("PMON_REDIS_PASSWORD"),
		RecordDB:      os.Getenv("PMON_RECORD_DB"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("PMON_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MgmtTimeout, err = durationEnv("PMON_MGMT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = durationEnv("PMON_PROBE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollConcurrency, err = intEnv("PMON_POLL_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.ActionRate, err = floatEnv("PMON_ACTION_RATE", 0.2); err != nil {
		return nil, err
	}
	if cfg.ActionBurst, err = intEnv("PMON_ACTION_BURST", 1); err != nil {
		return nil, err
	}
	if cfg.TargetInterval, err = durationEnv("PMON_TARGET_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AvgSamples, err = intEnv("PMON_AVG_SAMPLES", 10); err != nil {
		return nil, err
	}
	if cfg.AvgTrim, err = intEnv("PMON_AVG_TRIM", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration after flags have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
