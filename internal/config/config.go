// Package config loads process configuration from TRIPGROUPS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend driver names.
const (
	ConfigStoreMemory   = "memory"
	ConfigStoreSQLite   = "sqlite"
	ConfigStorePostgres = "postgres"

	StateStoreNone   = "none"
	StateStoreSQLite = "sqlite"
	StateStoreBlob   = "blob"

	BlobFS     = "fs"
	BlobS3     = "s3"
	BlobMemory = "memory"
)

// Config is the full process configuration.
type Config struct {
	VendorID             string        `env:"TRIPGROUPS_VENDOR_ID"            envDefault:"default"`
	HistoryLimit         int           `env:"TRIPGROUPS_HISTORY_LIMIT"        envDefault:"20"`
	DefaultGroupSize     int           `env:"TRIPGROUPS_DEFAULT_GROUP_SIZE"   envDefault:"6"`
	CompatibilityTimeout time.Duration `env:"TRIPGROUPS_COMPATIBILITY_TIMEOUT" envDefault:"30s"`

	ParticipantsURL  string        `env:"TRIPGROUPS_PARTICIPANTS_URL"`
	CompatibilityURL string        `env:"TRIPGROUPS_COMPATIBILITY_URL"`
	OptimizerURL     string        `env:"TRIPGROUPS_OPTIMIZER_URL"`
	APIKey           string        `env:"TRIPGROUPS_API_KEY"`
	HTTPTimeout      time.Duration `env:"TRIPGROUPS_HTTP_TIMEOUT"  envDefault:"30s"`
	FixtureFile      string        `env:"TRIPGROUPS_FIXTURE_FILE"`

	ConfigStore string `env:"TRIPGROUPS_CONFIG_STORE" envDefault:"memory"`
	SQLitePath  string `env:"TRIPGROUPS_SQLITE_PATH"  envDefault:"tripgroups.db"`
	PostgresDSN string `env:"TRIPGROUPS_POSTGRES_DSN"`

	StateStore string `env:"TRIPGROUPS_STATE_STORE" envDefault:"sqlite"`
	Blob       BlobConfig

	LogLevel       string `env:"TRIPGROUPS_LOG_LEVEL"      envDefault:"info"`
	LogFormat      string `env:"TRIPGROUPS_LOG_FORMAT"     envDefault:"text"`
	OTelEndpoint   string `env:"TRIPGROUPS_OTEL_ENDPOINT"`
	OTelInsecure   bool   `env:"TRIPGROUPS_OTEL_INSECURE"`
	MetricsAddress string `env:"TRIPGROUPS_METRICS_ADDR"   envDefault:":9090"`
}

// BlobConfig selects and configures the blob backend of the blob state store.
type BlobConfig struct {
	Driver            string `env:"TRIPGROUPS_BLOB_DRIVER"          envDefault:"fs"`
	FSRoot            string `env:"TRIPGROUPS_BLOB_FS_ROOT"         envDefault:"./blobdata"`
	Prefix            string `env:"TRIPGROUPS_BLOB_PREFIX"          envDefault:"sessions/"`
	S3Bucket          string `env:"TRIPGROUPS_BLOB_S3_BUCKET"`
	S3Region          string `env:"TRIPGROUPS_BLOB_S3_REGION"       envDefault:"us-east-1"`
	S3Endpoint        string `env:"TRIPGROUPS_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"TRIPGROUPS_BLOB_S3_PATH_STYLE"`
	S3AccessKeyID     string `env:"TRIPGROUPS_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"TRIPGROUPS_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ConfigStore = strings.ToLower(strings.TrimSpace(c.ConfigStore))
	c.StateStore = strings.ToLower(strings.TrimSpace(c.StateStore))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.VendorID) == "" {
		errs = append(errs, errors.New("TRIPGROUPS_VENDOR_ID must not be empty"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("TRIPGROUPS_HISTORY_LIMIT must be positive, got %d", c.HistoryLimit))
	}
	if c.DefaultGroupSize <= 0 {
		errs = append(errs, fmt.Errorf("TRIPGROUPS_DEFAULT_GROUP_SIZE must be positive, got %d", c.DefaultGroupSize))
	}
	if c.CompatibilityTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TRIPGROUPS_COMPATIBILITY_TIMEOUT must be positive, got %s", c.CompatibilityTimeout))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TRIPGROUPS_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	switch c.ConfigStore {
	case ConfigStoreMemory, ConfigStoreSQLite:
	case ConfigStorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("TRIPGROUPS_POSTGRES_DSN is required for the postgres config store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRIPGROUPS_CONFIG_STORE %q", c.ConfigStore))
	}
	switch c.StateStore {
	case StateStoreNone, StateStoreSQLite:
	case StateStoreBlob:
		switch c.Blob.Driver {
		case BlobFS, BlobMemory:
		case BlobS3:
			if c.Blob.S3Bucket == "" {
				errs = append(errs, errors.New("TRIPGROUPS_BLOB_S3_BUCKET is required for the s3 blob driver"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown TRIPGROUPS_BLOB_DRIVER %q", c.Blob.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRIPGROUPS_STATE_STORE %q", c.StateStore))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown TRIPGROUPS_LOG_LEVEL %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown TRIPGROUPS_LOG_FORMAT %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
