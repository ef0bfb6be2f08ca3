package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// ConfigErrorType classifies configuration failures for startup logs.
type ConfigErrorType string

const (
	ErrTypeProcess    ConfigErrorType = "process"
	ErrTypeValidation ConfigErrorType = "validation"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the scheduler configuration:
//
//  1. Sets the process timezone to UTC. Every due-date comparison in the
//     scanner assumes it.
//  2. Loads a .env file if present (non-fatal if missing; existing
//     environment variables are not overridden).
//  3. Processes envconfig tags to populate the Config struct.
//  4. Validates the struct with go-playground/validator.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrTypeProcess,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrTypeValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}
