package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"tripgroups/internal/bootstrap"
	"tripgroups/internal/config"
	"tripgroups/internal/core"
	platformotel "tripgroups/internal/platform/otel"
)

const serviceName = "tripgroups"

type runtimeDeps struct {
	loadConfig func() (config.Config, error)
	stdout     io.Writer
	stderr     io.Writer
	// engineOptions are appended after the configured ones.
	engineOptions []core.Option
}

// app is one CLI invocation: configuration, backends and a restored engine.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	backends *bootstrap.Backends
	engine   *core.Engine
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

func openApp(ctx context.Context, deps runtimeDeps) (*app, error) {
	cfg, err := deps.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := bootstrap.NewLogger(cfg, deps.stderr)

	shutdown, err := platformotel.Setup(ctx, platformotel.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	opts := append(backends.EngineOptions(cfg),
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(otel.Tracer(serviceName))),
	)
	opts = append(opts, deps.engineOptions...)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		backends: backends,
		engine:   core.New(opts...),
		registry: registry,
		shutdown: shutdown,
	}
	if err := a.restore(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) restore(ctx context.Context) error {
	if a.backends.State == nil {
		return nil
	}
	state, ok, err := a.backends.State.LoadState(ctx, a.cfg.VendorID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		a.logger.Debug("no saved session", "vendor_id", a.cfg.VendorID)
		return nil
	}
	return a.engine.Restore(ctx, state)
}

// save waits for pending compatibility recomputes so the stored session
// carries their scores.
func (a *app) save(ctx context.Context) error {
	a.engine.Wait()
	if a.backends.State == nil {
		return nil
	}
	if err := a.backends.State.SaveState(ctx, a.cfg.VendorID, a.engine.Persistable()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	a.engine.Close()
	return errors.Join(a.backends.Close(), a.shutdown(ctx))
}
