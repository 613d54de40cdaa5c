package core

import (
	"context"
	"fmt"

	"tripgroups/pkg/domain"
)

// GenerateOptimalGroups asks the optimizer to partition the unassigned pool
// and replaces the entire group collection with the validated result. The
// optimizer runs without the engine lock; if any mutation commits meanwhile
// the result is discarded.
func (e *Engine) GenerateOptimalGroups(ctx context.Context, opts domain.OptimizeOptions) ([]domain.Group, error) {
	var out []domain.Group
	err := e.run(ctx, "generate_optimal_groups", func(ctx context.Context) error {
		if e.optimizer == nil {
			return domain.NewError(domain.CodeOptimization, "no optimizer configured")
		}
		if opts.GroupSize <= 0 {
			opts.GroupSize = e.defaultGroupSize
		}

		e.mu.Lock()
		pool := e.state.unassigned()
		revision := e.revision
		e.mu.Unlock()

		if len(pool) == 0 {
			return domain.NewError(domain.CodeOptimization, "no unassigned participants to optimize")
		}

		result, err := e.optimizer.OptimizePartition(ctx, domain.CloneParticipants(pool), opts)
		if err != nil {
			return domain.WrapError(domain.CodeOptimization, "optimize partition", err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		if e.revision != revision {
			return domain.NewError(domain.CodeOptimization, "optimization result is stale: groups changed while optimizing")
		}
		groups, err := e.normalizeOptimized(result, pool, opts)
		if err != nil {
			return err
		}
		if _, err := e.runInTransaction(ctx, func(tx *transaction) error {
			tx.replaceGroups(groups)
			return nil
		}); err != nil {
			return domain.WrapError(domain.CodeOptimization, "optimizer returned an invalid partition", err)
		}
		e.cacheScoresLocked(e.state.groups)
		e.commitHistoryLocked("generate_optimal_groups")
		e.recomputeNeutralLocked()
		out = domain.CloneGroups(e.state.groups)
		e.logger.Info("optimal groups generated", "groups", len(out), "participants", domain.TotalParticipants(out))
		return nil
	})
	return out, err
}

// normalizeOptimized fills defaults on optimizer output and rejects
// participants outside the requested pool. Callers must hold e.mu.
func (e *Engine) normalizeOptimized(result []domain.Group, pool []domain.Participant, opts domain.OptimizeOptions) ([]domain.Group, error) {
	allowed := make(map[domain.ParticipantID]domain.Participant, len(pool))
	for _, p := range pool {
		allowed[p.ID] = p
	}
	now := e.clock.Now()
	groups := make([]domain.Group, 0, len(result))
	for n, g := range result {
		g = domain.CloneGroup(g)
		if g.ID == "" {
			g.ID = domain.GroupID(e.newID())
		}
		if g.Name == "" {
			g.Name = fmt.Sprintf("Group %d", n+1)
		}
		if g.MaxSize <= 0 {
			g.MaxSize = max(len(g.Participants), opts.GroupSize, e.defaultGroupSize)
		}
		for i, p := range g.Participants {
			known, ok := allowed[p.ID]
			if !ok {
				return nil, domain.NewError(domain.CodeOptimization,
					fmt.Sprintf("optimizer returned participant %s outside the unassigned pool", p.ID)).
					WithMetadata("participant_id", string(p.ID))
			}
			g.Participants[i] = known
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		g.Compatibility = normalizeCompatibility(g.Compatibility)
		g.Version = e.nextVersion()
		groups = append(groups, g)
	}
	return groups, nil
}
