package blob

import (
	"context"
	"fmt"

	"tripgroups/internal/infra/blob/fs"
	"tripgroups/internal/infra/blob/memory"
	"tripgroups/internal/infra/blob/s3"
)

// S3Config configures the S3-compatible driver.
type S3Config = s3.Config

// Config selects and parameterises a blob driver.
type Config struct {
	Driver Driver
	// FSRoot is the directory used by the fs driver.
	FSRoot string
	S3     S3Config
}

// Open constructs the Store named by cfg.Driver, defaulting to fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
