package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tripgroups/pkg/domain"
)

// Warning is a non-fatal condition recorded by the engine.
type Warning struct {
	Code    domain.Code
	GroupID domain.GroupID
	Message string
	At      time.Time
}

// Engine is the group assignment engine. It owns the participant and group
// state of one session and serialises every structural mutation.
type Engine struct {
	mu sync.Mutex

	state       groupState
	history     *History
	scores      map[scoreKey]domain.Compatibility
	configs     []domain.GroupConfiguration
	adventureID string
	warnings    []Warning
	revision    uint64
	versionSeq  uint64

	source      domain.ParticipantSource
	scorer      domain.CompatibilityScorer
	optimizer   domain.Optimizer
	configStore domain.ConfigurationStore
	rules       *domain.RulesEngine

	vendorID         string
	historyLimit     int
	defaultGroupSize int
	compatTimeout    time.Duration

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	newID   func() string

	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight int
	idle     *sync.Cond
	pending  sync.WaitGroup
}

// New constructs an engine with no selected adventure and an empty history.
func New(opts ...Option) *Engine {
	e := &Engine{
		scores:           make(map[scoreKey]domain.Compatibility),
		rules:            NewDefaultRulesEngine(),
		historyLimit:     DefaultHistoryLimit,
		defaultGroupSize: DefaultGroupSize,
		compatTimeout:    DefaultCompatibilityTimeout,
		logger:           noopLogger{},
		metrics:          noopMetrics{},
		tracer:           noopTracer{},
		clock:            systemClock{},
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	e.idle = sync.NewCond(&e.mu)
	e.history = NewHistory(e.historyLimit, nil, e.clock.Now())
	return e
}

// run wraps a public operation with tracing, logging and metrics.
func (e *Engine) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	e.metrics.Observe(ctx, op, err == nil, time.Since(start))
	switch {
	case err == nil:
		e.logger.Debug("engine operation completed", "operation", op)
	case domain.CodeOf(err) == domain.CodeInternal:
		e.logger.Error("engine operation failed", "operation", op, "error", err)
	default:
		e.logger.Info("engine operation rejected", "operation", op, "code", string(domain.CodeOf(err)), "error", err)
	}
	return err
}

// SelectAdventure fetches the adventure's participants and refreshes saved
// configurations concurrently. Selecting a different adventure clears the
// groups and reseeds history; a failed fetch leaves the state untouched.
func (e *Engine) SelectAdventure(ctx context.Context, adventureID string) error {
	return e.run(ctx, "select_adventure", func(ctx context.Context) error {
		if adventureID == "" {
			return domain.NewError(domain.CodeInvalidArgument, "adventure id is required")
		}
		if e.source == nil {
			return domain.NewError(domain.CodeFetch, "no participant source configured")
		}

		var (
			fetched   []domain.Participant
			configs   []domain.GroupConfiguration
			configErr error
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			participants, err := e.source.FetchParticipants(gctx, adventureID)
			if err != nil {
				return domain.WrapError(domain.CodeFetch, "fetch participants for adventure "+adventureID, err).
					WithMetadata("adventure_id", adventureID)
			}
			fetched = participants
			return nil
		})
		if e.configStore != nil {
			g.Go(func() error {
				records, err := e.configStore.ListConfigurations(gctx, e.vendorID)
				if err != nil {
					configErr = err
					return nil
				}
				configs = records
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		now := e.clock.Now()
		fetched = dedupeParticipants(fetched)
		if adventureID != e.adventureID {
			e.state.groups = nil
			e.history.Reset(nil, now)
			e.scores = make(map[scoreKey]domain.Compatibility)
			e.revision++
		}
		e.adventureID = adventureID
		e.state.available = fetched
		e.state.participants = mergeParticipants(e.state.participants, fetched)

		switch {
		case configErr != nil:
			e.addWarningLocked(Warning{Code: domain.CodePersistence, Message: "refresh configurations: " + configErr.Error()})
		case e.configStore != nil:
			e.configs = sortConfigurations(configs)
		}
		e.logger.Info("adventure selected", "adventure_id", adventureID, "participants", len(fetched))
		return nil
	})
}

// SelectedAdventure returns the active adventure id.
func (e *Engine) SelectedAdventure() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adventureID
}

// VendorID returns the vendor context configured for the engine.
func (e *Engine) VendorID() string { return e.vendorID }

// Groups returns a deep copy of the live groups in order.
func (e *Engine) Groups() []domain.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneGroups(e.state.groups)
}

// Group returns a deep copy of the group with id.
func (e *Engine) Group(id domain.GroupID) (domain.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.state.findGroup(id)
	if !ok {
		return domain.Group{}, false
	}
	return domain.CloneGroup(e.state.groups[i]), true
}

// Participants returns every participant ever fetched in this session.
func (e *Engine) Participants() []domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneParticipants(e.state.participants)
}

// AvailableParticipants returns the participants of the selected adventure.
func (e *Engine) AvailableParticipants() []domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneParticipants(e.state.available)
}

// UnassignedParticipants returns available participants not held by any group.
func (e *Engine) UnassignedParticipants() []domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.unassigned()
}

// Statistics summarises the live groups.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Calculate(e.state.groups)
}

// Undo restores the previous history snapshot. It reports false when there is
// nothing to undo.
func (e *Engine) Undo(ctx context.Context) bool {
	return e.step(ctx, "undo", e.history.Undo)
}

// Redo re-applies the next history snapshot. It reports false when there is
// nothing to redo.
func (e *Engine) Redo(ctx context.Context) bool {
	return e.step(ctx, "redo", e.history.Redo)
}

func (e *Engine) step(ctx context.Context, op string, move func() ([]domain.Group, bool)) bool {
	var applied bool
	_ = e.run(ctx, op, func(context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		groups, ok := move()
		if !ok {
			return nil
		}
		e.applyCachedScores(groups)
		e.state.groups = groups
		e.revision++
		applied = true
		e.recomputeNeutralLocked()
		return nil
	})
	return applied
}

// CanUndo reports whether Undo would change state.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

// CanRedo reports whether Redo would change state.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// HistoryLen returns the number of retained history entries.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Len()
}

// Warnings returns the recorded non-fatal conditions, oldest first.
func (e *Engine) Warnings() []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Warning(nil), e.warnings...)
}

// Wait blocks until every in-flight compatibility recompute has been applied
// or discarded. It may be called concurrently with mutations.
func (e *Engine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
}

// Close cancels in-flight recomputes and waits for them to exit. Responses
// arriving after Close are dropped.
func (e *Engine) Close() {
	// Cancelling under e.mu orders it after every pending.Add.
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()
	e.pending.Wait()
}

// commitHistoryLocked pushes the live groups onto history and prunes the
// score cache.
func (e *Engine) commitHistoryLocked(action string) {
	e.history.Push(e.state.groups, action, e.clock.Now())
	e.pruneScoresLocked()
}

func (e *Engine) addWarningLocked(w Warning) {
	if w.At.IsZero() {
		w.At = e.clock.Now()
	}
	e.warnings = append(e.warnings, w)
	if overflow := len(e.warnings) - maxWarnings; overflow > 0 {
		e.warnings = append([]Warning(nil), e.warnings[overflow:]...)
	}
	e.logger.Warn("engine warning", "code", string(w.Code), "group_id", string(w.GroupID), "message", w.Message)
}

// sortConfigurations orders records newest first.
func sortConfigurations(in []domain.GroupConfiguration) []domain.GroupConfiguration {
	out := domain.CloneConfigurations(in)
	domain.SortConfigurations(out)
	return out
}
