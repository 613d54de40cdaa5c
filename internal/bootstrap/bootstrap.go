// Package bootstrap turns a config.Config into engine collaborators and
// storage backends.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"tripgroups/internal/adapters/fixture"
	"tripgroups/internal/adapters/remote"
	"tripgroups/internal/blob"
	"tripgroups/internal/config"
	"tripgroups/internal/core"
	configmemory "tripgroups/internal/infra/configstore/memory"
	configpostgres "tripgroups/internal/infra/configstore/postgres"
	configsqlite "tripgroups/internal/infra/configstore/sqlite"
	stateblob "tripgroups/internal/infra/statestore/blob"
	statesqlite "tripgroups/internal/infra/statestore/sqlite"
	"tripgroups/pkg/domain"
)

// Backends holds everything the engine and CLI need besides observability.
// Nil fields mean the collaborator is not configured.
type Backends struct {
	Participants  domain.ParticipantSource
	Compatibility domain.CompatibilityScorer
	Optimizer     domain.Optimizer
	Configs       domain.ConfigurationStore
	State         domain.StateStore

	closers []io.Closer
}

// Open builds the backends named by cfg. Partially opened backends are
// closed when a later one fails.
func Open(ctx context.Context, cfg config.Config) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()
	if err := b.openCollaborators(cfg); err != nil {
		return nil, err
	}
	if b.Configs, err = b.openConfigStore(ctx, cfg); err != nil {
		return nil, err
	}
	if b.State, err = b.openStateStore(ctx, cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backends) openCollaborators(cfg config.Config) error {
	clientOpts := []remote.Option{remote.WithTimeout(cfg.HTTPTimeout)}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, remote.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	switch {
	case cfg.FixtureFile != "":
		src, err := fixture.Load(cfg.FixtureFile)
		if err != nil {
			return err
		}
		b.Participants = src
	case cfg.ParticipantsURL != "":
		client, err := remote.New(cfg.ParticipantsURL, clientOpts...)
		if err != nil {
			return fmt.Errorf("participants client: %w", err)
		}
		b.Participants = client
	}
	if cfg.CompatibilityURL != "" {
		client, err := remote.New(cfg.CompatibilityURL, clientOpts...)
		if err != nil {
			return fmt.Errorf("compatibility client: %w", err)
		}
		b.Compatibility = client
	}
	if cfg.OptimizerURL != "" {
		client, err := remote.New(cfg.OptimizerURL, clientOpts...)
		if err != nil {
			return fmt.Errorf("optimizer client: %w", err)
		}
		b.Optimizer = client
	}
	return nil
}

func (b *Backends) openConfigStore(ctx context.Context, cfg config.Config) (domain.ConfigurationStore, error) {
	switch cfg.ConfigStore {
	case config.ConfigStoreMemory, "":
		return configmemory.New(), nil
	case config.ConfigStoreSQLite:
		store, err := configsqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		return store, nil
	case config.ConfigStorePostgres:
		store, err := configpostgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown config store %s", cfg.ConfigStore)
	}
}

func (b *Backends) openStateStore(ctx context.Context, cfg config.Config) (domain.StateStore, error) {
	switch cfg.StateStore {
	case config.StateStoreNone, "":
		return nil, nil
	case config.StateStoreSQLite:
		store, err := statesqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		return store, nil
	case config.StateStoreBlob:
		blobs, err := blob.Open(ctx, blob.Config{
			Driver: blob.Driver(cfg.Blob.Driver),
			FSRoot: cfg.Blob.FSRoot,
			S3: blob.S3Config{
				Region:          cfg.Blob.S3Region,
				Bucket:          cfg.Blob.S3Bucket,
				Endpoint:        cfg.Blob.S3Endpoint,
				AccessKeyID:     cfg.Blob.S3AccessKeyID,
				SecretAccessKey: cfg.Blob.S3SecretAccessKey,
				PathStyle:       cfg.Blob.S3PathStyle,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return stateblob.New(blobs, cfg.Blob.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown state store %s", cfg.StateStore)
	}
}

// EngineOptions maps the configured collaborators and engine settings onto
// core options.
func (b *Backends) EngineOptions(cfg config.Config) []core.Option {
	opts := []core.Option{
		core.WithVendorID(cfg.VendorID),
		core.WithHistoryLimit(cfg.HistoryLimit),
		core.WithDefaultGroupSize(cfg.DefaultGroupSize),
		core.WithCompatibilityTimeout(cfg.CompatibilityTimeout),
	}
	if b.Participants != nil {
		opts = append(opts, core.WithParticipantSource(b.Participants))
	}
	if b.Compatibility != nil {
		opts = append(opts, core.WithCompatibilityScorer(b.Compatibility))
	}
	if b.Optimizer != nil {
		opts = append(opts, core.WithOptimizer(b.Optimizer))
	}
	if b.Configs != nil {
		opts = append(opts, core.WithConfigurationStore(b.Configs))
	}
	return opts
}

// Close releases database handles in reverse open order.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the process slog.Logger from the log level and format.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "tripgroups")
}
