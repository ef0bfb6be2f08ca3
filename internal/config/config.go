// Package config defines the global configuration for the bubbletasks
// scheduler. Configuration is loaded once at process initialization (Lambda
// cold start) and is immutable thereafter, following 12-Factor principles.
//
// Values resolve OS environment first, then a local .env file. Any missing
// required value or invalid format fails the process immediately on
// startup.
package config

import (
	"time"

	"bubbletasks/internal/types"
)

// SecretString aliases types.SecretString, the redacted secret type used
// in configuration to keep sensitive values out of logs.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive
// only the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"bubbletasks-scheduler"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Scan     ScanConfig
	Push     PushConfig
}

// ServerConfig holds the ops API listener configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the optional Redis ledger settings. When Addr is empty
// the Postgres ledger is used.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	PushQueueURL  string `envconfig:"SQS_PUSH_QUEUE" validate:"required,url"`
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`

	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ScanConfig tunes the scan driver.
type ScanConfig struct {
	Concurrency     int           `envconfig:"SCAN_CONCURRENCY" default:"8"`
	DeepLinkBase    string        `envconfig:"DEEP_LINK_BASE" default:"https://app.bubbletasks.io/task"`
	LedgerRetention time.Duration `envconfig:"LEDGER_RETENTION" default:"720h"`
	CleanupBatch    int           `envconfig:"LEDGER_CLEANUP_BATCH" default:"5000"`
}

// PushConfig holds push gateway settings for the push worker.
type PushConfig struct {
	GatewayURL    string       `envconfig:"PUSH_GATEWAY_URL" validate:"required,url"`
	GatewayAPIKey SecretString `envconfig:"PUSH_GATEWAY_API_KEY" validate:"required"`
	Timeout       time.Duration `envconfig:"PUSH_GATEWAY_TIMEOUT" default:"15s"`
	MaxRetries    int           `envconfig:"PUSH_MAX_RETRIES" default:"3"`
}
