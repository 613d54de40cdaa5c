package core

import (
	"time"

	"tripgroups/pkg/domain"
)

// Engine defaults.
const (
	DefaultGroupSize            = 6
	DefaultHistoryLimit         = 20
	DefaultCompatibilityTimeout = 30 * time.Second
	maxWarnings                 = 50
)

// Option configures an Engine.
type Option func(*Engine)

// WithParticipantSource sets the collaborator used by SelectAdventure.
func WithParticipantSource(source domain.ParticipantSource) Option {
	return func(e *Engine) { e.source = source }
}

// WithCompatibilityScorer sets the scorer invoked after membership changes.
// Without a scorer groups keep neutral compatibility.
func WithCompatibilityScorer(scorer domain.CompatibilityScorer) Option {
	return func(e *Engine) { e.scorer = scorer }
}

// WithOptimizer sets the partition optimizer.
func WithOptimizer(optimizer domain.Optimizer) Option {
	return func(e *Engine) { e.optimizer = optimizer }
}

// WithConfigurationStore sets the store backing saved configurations.
func WithConfigurationStore(store domain.ConfigurationStore) Option {
	return func(e *Engine) { e.configStore = store }
}

// WithVendorID sets the vendor context used for configurations.
func WithVendorID(vendorID string) Option {
	return func(e *Engine) { e.vendorID = vendorID }
}

// WithHistoryLimit bounds the undo/redo history. Values below 1 are ignored.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// WithDefaultGroupSize sets the capacity used when callers pass none.
func WithDefaultGroupSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.defaultGroupSize = size
		}
	}
}

// WithCompatibilityTimeout bounds each asynchronous compatibility recompute.
func WithCompatibilityTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.compatTimeout = timeout
		}
	}
}

// WithRulesEngine replaces the default invariant rules.
func WithRulesEngine(rules *domain.RulesEngine) Option {
	return func(e *Engine) {
		if rules != nil {
			e.rules = rules
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetricsRecorder injects an operation metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithTracer injects a tracer.
func WithTracer(tracer Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator overrides group id allocation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}
