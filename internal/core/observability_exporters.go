package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tripgroups/pkg/domain"
)

// PrometheusMetricsRecorder exports engine operation outcomes, latencies and
// discarded compatibility responses.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	discarded  *prometheus.CounterVec
}

var (
	_ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
	_ DiscardRecorder = (*PrometheusMetricsRecorder)(nil)
)

// NewPrometheusMetricsRecorder registers the engine collectors with reg,
// falling back to the default registerer when reg is nil.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgroups",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripgroups",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"operation"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgroups",
			Subsystem: "engine",
			Name:      "compatibility_discarded_total",
			Help:      "Compatibility responses dropped because the group changed or was deleted.",
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.durations, r.discarded} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register engine metrics: %w", err)
		}
	}
	return r, nil
}

// Observe records an operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveDiscard counts a dropped compatibility response.
func (r *PrometheusMetricsRecorder) ObserveDiscard(_ context.Context, reason string) {
	r.discarded.WithLabelValues(reason).Inc()
}

// OTelTracer adapts an OpenTelemetry tracer to the engine Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tracer.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "tripgroups."+operation,
		trace.WithAttributes(attribute.String("tripgroups.operation", operation)))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetAttributes(attribute.String("tripgroups.error_code", string(domain.CodeOf(err))))
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// SlogLogger adapts a *slog.Logger to the engine Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger, using slog.Default when nil.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "engine")}
}

// Debug implements Logger.
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info implements Logger.
func (l *SlogLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn implements Logger.
func (l *SlogLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error implements Logger.
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
