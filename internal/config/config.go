// Package config loads the filesaga process configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FILESAGA"

// Backend selects the object store implementation.
const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

// Config represents the filesaga configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILESAGA_*, plus TABLE_NAME and BUCKET_NAME)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// TableName is the DynamoDB permission table.
	TableName string `mapstructure:"table_name" validate:"required"`

	// BucketName is the bucket holding the user files.
	BucketName string `mapstructure:"bucket_name" validate:"required"`

	// Backend selects the object store: s3, minio or memory.
	Backend string `mapstructure:"backend" validate:"required,oneof=s3 minio memory"`

	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	AWS     AWSConfig     `mapstructure:"aws"`
	Minio   MinioConfig   `mapstructure:"minio"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// SlogLevel returns the configured level as slog.Level.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `mapstructure:"addr" validate:"required"`

	// RequestTimeout bounds a single request, including both stores.
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// CompensationTimeout bounds the rollback of a master entry after a
	// failed create. It is not cut short by RequestTimeout.
	// Default: 10s
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes /metrics on the server.
	Enabled bool `mapstructure:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// AWSConfig configures the AWS SDK clients.
// Empty values fall back to the SDK default chain.
type AWSConfig struct {
	Region string `mapstructure:"region"`

	// DynamoDBEndpoint and S3Endpoint override the service endpoints,
	// e.g. for DynamoDB Local or LocalStack.
	DynamoDBEndpoint string `mapstructure:"dynamodb_endpoint" validate:"omitempty,url"`
	S3Endpoint       string `mapstructure:"s3_endpoint" validate:"omitempty,url"`

	// UsePathStyle forces path-style S3 addressing.
	UsePathStyle bool `mapstructure:"use_path_style"`

	// AccessKeyID and SecretAccessKey set static credentials.
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
}

// MinioConfig configures the MinIO client. Used when Backend is minio.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// LimitsConfig bounds remote calls.
type LimitsConfig struct {
	// MaxInFlight is the maximum number of concurrent remote calls. 0 means unlimited.
	MaxInFlight int64 `mapstructure:"max_in_flight" validate:"gte=0"`

	// RequestsPerSecond is the sustained remote call rate. 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Burst is the token bucket size when a rate is set.
	Burst int `mapstructure:"burst" validate:"gte=0"`

	// BatchSize is the number of user entries deleted per batch call.
	// Default: 25
	BatchSize int `mapstructure:"batch_size" validate:"min=1,max=25"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case only environment variables and
// defaults are used. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and defaults.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FILESAGA_SERVER_ADDR=:9000
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The unprefixed names are the ones set by the deployment templates
	_ = v.BindEnv("table_name", EnvPrefix+"_TABLE_NAME", "TABLE_NAME")
	_ = v.BindEnv("bucket_name", EnvPrefix+"_BUCKET_NAME", "BUCKET_NAME")

	// Every key needs a default so AutomaticEnv picks it up during Unmarshal
	d := DefaultConfig()
	v.SetDefault("table_name", "")
	v.SetDefault("bucket_name", "")
	v.SetDefault("backend", d.Backend)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.compensation_timeout", d.Server.CompensationTimeout)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.dynamodb_endpoint", "")
	v.SetDefault("aws.s3_endpoint", "")
	v.SetDefault("aws.use_path_style", false)
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("limits.max_in_flight", d.Limits.MaxInFlight)
	v.SetDefault("limits.requests_per_second", d.Limits.RequestsPerSecond)
	v.SetDefault("limits.burst", d.Limits.Burst)
	v.SetDefault("limits.batch_size", d.Limits.BatchSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

// configDecodeHooks returns a combined decode hook for durations and lists.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
