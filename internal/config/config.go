// Package config loads the client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting of the chat client. Defaults apply to unset
// variables.
type Config struct {
	WSURL              string        `env:"CHATANON_WS_URL,default=ws://localhost:3001/ws" validate:"required,url"`
	APIURL             string        `env:"CHATANON_API_URL,default=http://localhost:3001" validate:"required,url"`
	DataDir            string        `env:"CHATANON_DATA_DIR,default=.chatanon" validate:"required"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	MaxAttempts        int           `env:"RECONNECT_MAX_ATTEMPTS,default=5" validate:"gte=0"`
	BaseDelay          time.Duration `env:"RECONNECT_BASE_DELAY,default=3s" validate:"gt=0"`
	DialTimeout        time.Duration `env:"DIAL_TIMEOUT,default=10s" validate:"gt=0"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT,default=5s" validate:"gt=0"`
	OnlinePollInterval time.Duration `env:"ONLINE_POLL_INTERVAL,default=30s" validate:"gt=0"`
	MetricsAddr        string        `env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	Language           string        `env:"CHATANON_LANGUAGE"`
	Timezone           string        `env:"CHATANON_TIMEZONE"`
}

// Load reads an optional .env file from the working directory, then the
// process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnviron()
}

// FromEnviron reads the process environment only.
func FromEnviron() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
